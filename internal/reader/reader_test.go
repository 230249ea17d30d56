package reader_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/fake"
	"github.com/momentics/hioload-httpd/internal/reader"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type staticResolver struct {
	maxBody int64
}

func (s staticResolver) Resolve(host string) (config.ServerContext, bool) {
	return config.ServerContext{Host: host, ClientMaxBodySize: s.maxBody}, true
}

type noResolver struct{}

func (noResolver) Resolve(string) (config.ServerContext, bool) { return config.ServerContext{}, false }

// drive feeds chunks one per call and returns the first completed request.
func drive(t require.TestingT, r *reader.Reader, chunks [][]byte) (*httpmsg.Request, error) {
	src := fake.NewSource(chunks...)
	buf := transport.NewReadBuffer(src)
	for i := 0; i <= len(chunks)+1; i++ {
		req, err := r.ReadRequest(buf)
		if err != nil || req != nil {
			return req, err
		}
	}
	return nil, nil
}

const simpleGet = "GET /index.html?x=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"

func TestReadSimpleGet(t *testing.T) {
	req, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{[]byte(simpleGet)})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, httpmsg.MethodGet, req.Method())
	assert.Equal(t, "/index.html", req.Path())
	assert.Equal(t, "x=1", req.Query())
	host, _ := req.Header("host")
	assert.Equal(t, "example.com", host)
	assert.Empty(t, req.Body())
}

func TestReadContentLengthBody(t *testing.T) {
	raw := "POST /form HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"
	req, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{[]byte(raw)})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, []byte("hello"), req.Body())
}

func TestReadChunkedBody(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	req, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{[]byte(raw)})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "hello world", string(req.Body()))
}

func TestReadChunkedIgnoresExtensionsAndTrailers(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3;name=value\r\nabc\r\n0\r\nX-Checksum: 1\r\n\r\n"
	req, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{[]byte(raw)})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "abc", string(req.Body()))
}

func TestContentLengthAboveCeiling(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 11\r\n\r\nhello world"
	r := reader.New(staticResolver{maxBody: 10})
	_, err := drive(t, r, [][]byte{[]byte(raw)})
	assert.ErrorIs(t, err, api.ErrPayloadTooLarge)
	assert.Equal(t, api.KindPayloadTooLarge, api.KindOf(err))
	assert.Equal(t, reader.ReadingHeaders, r.Phase())
}

func TestChunkedAboveCeilingFailsAtChunkBoundary(t *testing.T) {
	head := "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"
	r := reader.New(staticResolver{maxBody: 8})
	_, err := drive(t, r, [][]byte{[]byte(head + "5\r\nhello\r\n"), []byte("5\r\n")})
	assert.ErrorIs(t, err, api.ErrPayloadTooLarge)
}

func TestChunkSizeNearInt64MaxStillHitsCeiling(t *testing.T) {
	head := "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"
	r := reader.New(staticResolver{maxBody: 10})
	_, err := drive(t, r, [][]byte{
		[]byte(head + "1\r\na\r\n7fffffffffffffff\r\n"),
		bytes.Repeat([]byte("b"), 8000),
	})
	assert.ErrorIs(t, err, api.ErrPayloadTooLarge)
}

func TestUnterminatedChunkLinesAreBounded(t *testing.T) {
	head := "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"
	tests := map[string]string{
		"chunk size": head,
		"trailer":    head + "0\r\nX-Trailer: ",
	}
	for name, prefix := range tests {
		t.Run(name, func(t *testing.T) {
			chunks := [][]byte{[]byte(prefix)}
			for i := 0; i < 8; i++ {
				chunks = append(chunks, bytes.Repeat([]byte("1"), 4096))
			}
			_, err := drive(t, reader.New(staticResolver{maxBody: 1 << 20}), chunks)
			assert.ErrorIs(t, err, api.ErrParse)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing host":        "GET / HTTP/1.1\r\nAccept: x\r\n\r\n",
		"both lengths":        "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 1\r\nTransfer-Encoding: chunked\r\n\r\n",
		"unsupported te":      "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: gzip\r\n\r\n",
		"bad content length":  "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: -1\r\n\r\n",
		"bad chunk size":      "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n",
		"signed length":       "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: +5\r\n\r\nhello",
		"signed chunk size":   "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n+a\r\n",
		"missing chunk crlf":  "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n1\r\naXY",
		"bad request line":    "GET\r\nHost: a\r\n\r\n",
		"malformed header":    "GET / HTTP/1.1\r\nHost a\r\n\r\n",
		"unknown http method": "PATCH / HTTP/1.1\r\nHost: a\r\n\r\n",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{[]byte(raw)})
			assert.ErrorIs(t, err, api.ErrParse)
		})
	}
}

func TestHeaderBlockTooLarge(t *testing.T) {
	r := reader.New(staticResolver{maxBody: 1024}, reader.WithMaxHeaderBytes(32))
	_, err := drive(t, r, [][]byte{[]byte("GET /" + string(make([]byte, 64)))})
	assert.ErrorIs(t, err, api.ErrParse)
}

func TestUnresolvableHost(t *testing.T) {
	_, err := drive(t, reader.New(noResolver{}), [][]byte{[]byte(simpleGet)})
	require.Error(t, err)
	assert.Equal(t, api.KindUnknown, api.KindOf(err))
}

func TestPartialInputSuspends(t *testing.T) {
	src := fake.NewSource([]byte("GET / HTTP/1.1\r\nHo"))
	buf := transport.NewReadBuffer(src)
	r := reader.New(staticResolver{maxBody: 1})

	req, err := r.ReadRequest(buf)
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Equal(t, reader.ReadingHeaders, r.Phase())

	req, err = r.ReadRequest(buf)
	require.NoError(t, err)
	assert.Nil(t, req)

	src.Push([]byte("st: a\r\n\r\n"))
	req, err = r.ReadRequest(buf)
	require.NoError(t, err)
	require.NotNil(t, req)
}

func TestEndOfStream(t *testing.T) {
	src := fake.NewSource()
	src.CloseInput()
	_, err := reader.New(staticResolver{}).ReadRequest(transport.NewReadBuffer(src))
	assert.ErrorIs(t, err, api.ErrPeerClosed)

	src = fake.NewSource([]byte("GET / HTTP/1.1\r\n"))
	src.CloseInput()
	buf := transport.NewReadBuffer(src)
	r := reader.New(staticResolver{})
	req, err := r.ReadRequest(buf)
	require.NoError(t, err)
	assert.Nil(t, req)
	_, err = r.ReadRequest(buf)
	assert.ErrorIs(t, err, api.ErrIncomplete)
}

func TestSplitInvariance(t *testing.T) {
	messages := []string{
		simpleGet,
		"POST /form HTTP/1.1\r\nHost: a\r\nContent-Length: 11\r\nContent-Type: text/plain\r\n\r\nhello world",
		"POST /upload HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n",
	}
	rapid.Check(t, func(t *rapid.T) {
		msg := []byte(rapid.SampledFrom(messages).Draw(t, "message"))

		whole, err := drive(t, reader.New(staticResolver{maxBody: 1024}), [][]byte{msg})
		require.NoError(t, err)
		require.NotNil(t, whole)

		cuts := rapid.SliceOfNDistinct(rapid.IntRange(1, len(msg)-1), 0, len(msg)-1, rapid.ID[int]).Draw(t, "cuts")
		chunks := split(msg, cuts)
		got, err := drive(t, reader.New(staticResolver{maxBody: 1024}), chunks)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, whole.Method(), got.Method())
		assert.Equal(t, whole.Target(), got.Target())
		assert.Equal(t, whole.Version(), got.Version())
		assert.Equal(t, whole.Headers(), got.Headers())
		assert.Equal(t, whole.Body(), got.Body())
	})
}

func TestOneByteAtATime(t *testing.T) {
	msg := []byte("POST /upload HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	chunks := make([][]byte, len(msg))
	for i := range msg {
		chunks[i] = msg[i : i+1]
	}
	req, err := drive(t, reader.New(staticResolver{maxBody: 1024}), chunks)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "hello world", string(req.Body()))
}

func split(msg []byte, cuts []int) [][]byte {
	sorted := append([]int(nil), cuts...)
	sort.Ints(sorted)
	var chunks [][]byte
	prev := 0
	for _, c := range sorted {
		chunks = append(chunks, msg[prev:c])
		prev = c
	}
	return append(chunks, msg[prev:])
}
