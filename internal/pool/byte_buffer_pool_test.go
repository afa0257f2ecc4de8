package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer(t *testing.T) {
	t.Run("write and reset", func(t *testing.T) {
		bb := NewByteBuffer(4)
		bb.MustWrite([]byte{1, 2, 3})
		bb.AppendUvarint(4)
		bb.AppendUvarint(300)
		require.Equal(t, []byte{1, 2, 3, 4, 0xac, 0x02}, bb.Bytes())
		require.Equal(t, 6, bb.Len())

		bb.Reset()
		require.Zero(t, bb.Len())
		require.GreaterOrEqual(t, cap(bb.B), 6)
	})

	t.Run("grow keeps content", func(t *testing.T) {
		bb := NewByteBuffer(2)
		bb.MustWrite([]byte{7, 8})
		bb.Grow(100)
		require.GreaterOrEqual(t, cap(bb.B)-len(bb.B), 100)
		require.Equal(t, []byte{7, 8}, bb.Bytes())
	})

	t.Run("grow is a no-op with enough capacity", func(t *testing.T) {
		bb := NewByteBuffer(64)
		before := cap(bb.B)
		bb.Grow(10)
		require.Equal(t, before, cap(bb.B))
	})
}

func TestByteBufferPool(t *testing.T) {
	t.Run("returned buffers are reset", func(t *testing.T) {
		p := NewByteBufferPool(16, 1024)
		bb := p.Get()
		bb.MustWrite([]byte("payload"))
		p.Put(bb)

		got := p.Get()
		require.Equal(t, 0, got.Len())
	})

	t.Run("oversized buffers are dropped", func(t *testing.T) {
		p := NewByteBufferPool(16, 32)
		bb := NewByteBuffer(64)
		p.Put(bb)
		require.Equal(t, 64, cap(bb.B))
	})

	t.Run("nil put is ignored", func(t *testing.T) {
		require.NotPanics(t, func() { PutBlockBuffer(nil) })
	})

	t.Run("default block pool", func(t *testing.T) {
		bb := GetBlockBuffer()
		require.NotNil(t, bb)
		require.Equal(t, 0, bb.Len())
		PutBlockBuffer(bb)
	})
}
