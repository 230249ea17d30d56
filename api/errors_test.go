package api_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want api.ErrorKind
	}{
		{"nil", nil, api.KindUnknown},
		{"sentinel", api.ErrParse, api.KindParseUnknown},
		{"wrapped sentinel", fmt.Errorf("read: %w", api.ErrPayloadTooLarge), api.KindPayloadTooLarge},
		{"eagain", unix.EAGAIN, api.KindWouldBlock},
		{"eintr", fmt.Errorf("write: %w", unix.EINTR), api.KindWouldBlock},
		{"other errno", unix.ECONNRESET, api.KindIOUnknown},
		{"plain", io.ErrUnexpectedEOF, api.KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, api.KindOf(tc.err))
		})
	}
}

func TestErrorIsIgnoresContext(t *testing.T) {
	err := api.ErrParse.WithContext("line", "GET")
	assert.True(t, errors.Is(err, api.ErrParse))
	assert.False(t, errors.Is(err, api.ErrPayloadTooLarge))
	assert.Contains(t, err.Error(), "line")
	assert.Empty(t, api.ErrParse.Context)
}

func TestWrapUnwraps(t *testing.T) {
	err := api.Wrap(api.KindIOUnknown, "socketpair", unix.EMFILE)
	assert.ErrorIs(t, err, unix.EMFILE)
	assert.Equal(t, api.KindIOUnknown, api.KindOf(err))
	assert.Equal(t, "socketpair: too many open files", err.Error())
}

func TestIsWouldBlock(t *testing.T) {
	assert.True(t, api.IsWouldBlock(api.ErrWouldBlock))
	assert.True(t, api.IsWouldBlock(unix.EAGAIN))
	assert.False(t, api.IsWouldBlock(nil))
	assert.False(t, api.IsWouldBlock(api.ErrPeerClosed))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "payload_too_large", api.KindPayloadTooLarge.String())
	assert.Equal(t, "unknown", api.ErrorKind(99).String())
}
