package pool_test

import (
	"testing"

	"github.com/momentics/hioload-httpd/pool"
	"github.com/stretchr/testify/assert"
)

func TestBytePoolSizes(t *testing.T) {
	p := pool.NewBytePool(128)
	buf := p.GetBuffer()
	assert.Len(t, *buf, 128)
	p.PutBuffer(buf)

	short := make([]byte, 3)
	p.PutBuffer(&short)
	assert.Len(t, *p.GetBuffer(), 128)
}

func TestBytePoolDefaultSize(t *testing.T) {
	assert.Equal(t, pool.DefaultChunkSize, pool.NewBytePool(0).Size())
	assert.Equal(t, pool.DefaultChunkSize, pool.Default().Size())
}
