// File: internal/reader/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resumable request reader. Each call performs at most one read from the
// connection and advances as far as the buffered bytes allow.

package reader

import (
	"strconv"
	"strings"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
)

// DefaultMaxHeaderBytes bounds the request line plus header block.
const DefaultMaxHeaderBytes = 16 << 10

const crlf = "\r\n"

// ConfigResolver yields the virtual server for a Host header value.
type ConfigResolver interface {
	Resolve(host string) (config.ServerContext, bool)
}

// Phase is the reader's position in the message.
type Phase int

const (
	ReadingRequestLine Phase = iota
	ReadingHeaders
	ReadingBody
	ReadingChunkedBody
	Done
)

func (p Phase) String() string {
	switch p {
	case ReadingRequestLine:
		return "request-line"
	case ReadingHeaders:
		return "headers"
	case ReadingBody:
		return "body"
	case ReadingChunkedBody:
		return "chunked-body"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type chunkPhase int

const (
	chunkSize chunkPhase = iota
	chunkData
	chunkDataEnd
	chunkTrailer
)

// Reader owns all partial progress of one request.
type Reader struct {
	resolver       ConfigResolver
	log            *zap.Logger
	maxHeaderBytes int

	phase       Phase
	requestLine string
	headers     []string
	headerBytes int

	maxBody        int64
	contentLength  int64
	body           []byte
	chunk          chunkPhase
	chunkRemaining int64
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) { r.log = log }
}

// WithMaxHeaderBytes overrides DefaultMaxHeaderBytes.
func WithMaxHeaderBytes(n int) Option {
	return func(r *Reader) { r.maxHeaderBytes = n }
}

// New creates a reader that looks up body-size limits through resolver.
func New(resolver ConfigResolver, opts ...Option) *Reader {
	r := &Reader{
		resolver:       resolver,
		log:            zap.NewNop(),
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase reports the current phase.
func (r *Reader) Phase() Phase { return r.phase }

// ReadRequest loads once from buf and advances the state machine. It
// returns (nil, nil) when more input is needed. End of stream before the
// request is complete is an error.
func (r *Reader) ReadRequest(buf *transport.ReadBuffer) (*httpmsg.Request, error) {
	n, err := buf.Load()
	if err != nil && !api.IsWouldBlock(err) {
		return nil, err
	}
	eof := err == nil && n == 0

	for r.phase != Done && buf.Size() > 0 {
		progressed, err := r.step(buf)
		if err != nil {
			return nil, err
		}
		if !progressed {
			break
		}
	}

	if r.phase != Done {
		if eof {
			if r.phase == ReadingRequestLine && buf.Size() == 0 {
				return nil, api.ErrPeerClosed
			}
			r.log.Warn("peer closed mid-request", zap.Stringer("phase", r.phase))
			return nil, api.ErrIncomplete.WithContext("phase", r.phase.String())
		}
		return nil, nil
	}

	req, err := httpmsg.ParseRequest(r.requestLine, r.headers, r.body)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// step runs the handler of the current phase. It reports false when the
// buffer cannot complete anything more.
func (r *Reader) step(buf *transport.ReadBuffer) (bool, error) {
	switch r.phase {
	case ReadingRequestLine:
		return r.readRequestLine(buf)
	case ReadingHeaders:
		return r.readHeaders(buf)
	case ReadingBody:
		return r.readBody(buf)
	case ReadingChunkedBody:
		return r.readChunked(buf)
	default:
		return false, nil
	}
}

func (r *Reader) readLine(buf *transport.ReadBuffer) (string, bool, error) {
	line, ok := buf.ConsumeUntil(crlf)
	if !ok {
		if r.headerBytes+buf.Size() > r.maxHeaderBytes {
			return "", false, api.ErrParse.WithContext("header_bytes", r.headerBytes+buf.Size())
		}
		return "", false, nil
	}
	r.headerBytes += len(line)
	if r.headerBytes > r.maxHeaderBytes {
		return "", false, api.ErrParse.WithContext("header_bytes", r.headerBytes)
	}
	return strings.TrimSuffix(line, crlf), true, nil
}

func (r *Reader) readRequestLine(buf *transport.ReadBuffer) (bool, error) {
	line, ok, err := r.readLine(buf)
	if err != nil || !ok {
		return false, err
	}
	r.requestLine = line
	r.phase = ReadingHeaders
	return true, nil
}

func (r *Reader) readHeaders(buf *transport.ReadBuffer) (bool, error) {
	for {
		line, ok, err := r.readLine(buf)
		if err != nil || !ok {
			return false, err
		}
		if line == "" {
			break
		}
		r.headers = append(r.headers, line)
	}
	if err := r.selectBodyPhase(); err != nil {
		return false, err
	}
	return true, nil
}

// selectBodyPhase decides between no body, a sized body and a chunked
// body once the full header block is known.
func (r *Reader) selectBodyPhase() error {
	fields, err := r.headerFields()
	if err != nil {
		return err
	}
	host, ok := fields.Get("Host")
	if !ok {
		return api.ErrParse.WithContext("header", "missing Host")
	}
	server, ok := r.resolver.Resolve(host)
	if !ok {
		return api.NewError(api.KindUnknown, "no virtual server").WithContext("host", host)
	}
	r.maxBody = server.ClientMaxBodySize

	rawLength, hasLength := fields.Get("Content-Length")
	te, hasTE := fields.Get("Transfer-Encoding")
	if hasTE && !strings.EqualFold(te, "chunked") {
		return api.ErrParse.WithContext("transfer_encoding", te)
	}
	if hasTE && hasLength {
		return api.ErrParse.WithContext("header", "both Content-Length and Transfer-Encoding")
	}
	if hasTE {
		r.phase = ReadingChunkedBody
		r.chunk = chunkSize
		return nil
	}
	if !hasLength {
		r.phase = Done
		return nil
	}
	length, err := strconv.ParseInt(rawLength, 10, 64)
	if err != nil || length < 0 || !startsWithDigit(rawLength) {
		return api.ErrParse.WithContext("content_length", rawLength)
	}
	if length > r.maxBody {
		return api.ErrPayloadTooLarge.WithContext("content_length", length)
	}
	if length == 0 {
		r.phase = Done
		return nil
	}
	r.contentLength = length
	r.body = make([]byte, 0, length)
	r.phase = ReadingBody
	return nil
}

func (r *Reader) headerFields() (httpmsg.Header, error) {
	fields := make(httpmsg.Header, len(r.headers))
	for _, line := range r.headers {
		name, value, err := httpmsg.ParseHeaderFieldLine(line)
		if err != nil {
			return nil, err
		}
		if !fields.Has(name) {
			fields.Set(name, value)
		}
	}
	return fields, nil
}

func (r *Reader) readBody(buf *transport.ReadBuffer) (bool, error) {
	want := r.contentLength - int64(len(r.body))
	r.body = append(r.body, buf.Consume(int(min(want, int64(buf.Size()))))...)
	if int64(len(r.body)) < r.contentLength {
		return false, nil
	}
	r.phase = Done
	return true, nil
}

func (r *Reader) readChunked(buf *transport.ReadBuffer) (bool, error) {
	switch r.chunk {
	case chunkSize:
		line, ok, err := r.readChunkLine(buf)
		if err != nil || !ok {
			return false, err
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return false, err
		}
		if size == 0 {
			r.chunk = chunkTrailer
			return true, nil
		}
		if size > r.maxBody-int64(len(r.body)) {
			return false, api.ErrPayloadTooLarge.WithContext("chunk_size", size)
		}
		r.chunkRemaining = size
		r.chunk = chunkData
		return true, nil

	case chunkData:
		take := min(r.chunkRemaining, int64(buf.Size()))
		r.body = append(r.body, buf.Consume(int(take))...)
		r.chunkRemaining -= take
		if r.chunkRemaining > 0 {
			return false, nil
		}
		r.chunk = chunkDataEnd
		return true, nil

	case chunkDataEnd:
		if buf.Size() < len(crlf) {
			return false, nil
		}
		if string(buf.Consume(len(crlf))) != crlf {
			return false, api.ErrParse.WithContext("chunk", "missing CRLF after data")
		}
		r.chunk = chunkSize
		return true, nil

	case chunkTrailer:
		// trailer fields share the header section budget
		line, ok, err := r.readLine(buf)
		if err != nil || !ok {
			return false, err
		}
		if line == "" {
			r.phase = Done
		}
		return true, nil
	}
	return false, nil
}

// readChunkLine returns one chunk-size line without its CRLF. A line longer
// than the header limit is rejected before its terminator arrives.
func (r *Reader) readChunkLine(buf *transport.ReadBuffer) (string, bool, error) {
	line, ok := buf.ConsumeUntil(crlf)
	if !ok {
		if buf.Size() > r.maxHeaderBytes {
			return "", false, api.ErrParse.WithContext("chunk_line_bytes", buf.Size())
		}
		return "", false, nil
	}
	if len(line) > r.maxHeaderBytes {
		return "", false, api.ErrParse.WithContext("chunk_line_bytes", len(line))
	}
	return strings.TrimSuffix(line, crlf), true, nil
}

// startsWithDigit reports whether s begins with an ASCII digit. ParseInt
// alone would also take a sign.
func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// parseChunkSize reads the hex size, ignoring extensions after ';'.
func parseChunkSize(line string) (int64, error) {
	raw, _, _ := strings.Cut(line, ";")
	raw = strings.TrimSpace(raw)
	if !startsWithHexDigit(raw) {
		return 0, api.ErrParse.WithContext("chunk_size", line)
	}
	size, err := strconv.ParseInt(raw, 16, 64)
	if err != nil || size < 0 {
		return 0, api.ErrParse.WithContext("chunk_size", line)
	}
	return size, nil
}

func startsWithHexDigit(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
