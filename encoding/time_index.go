package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/internal/pool"
)

// TimeIndexEncoder encodes the time column of a block as unsigned varint deltas.
//
// Each entry stores idx - previous idx; the first entry of a block stores its
// distance from the block base. Densely toggling signals (one change per time
// step) therefore cost a single byte per entry.
//
// Callers must write non-decreasing indices; the signal encoder validates
// ordering before anything reaches this column.
type TimeIndexEncoder struct {
	buf   *pool.ByteBuffer
	prev  uint32
	count int
}

var _ ColumnarEncoder[uint32] = (*TimeIndexEncoder)(nil)

// NewTimeIndexEncoder creates an encoder with base 0.
func NewTimeIndexEncoder() *TimeIndexEncoder {
	return &TimeIndexEncoder{
		buf: pool.GetBlockBuffer(),
	}
}

// Write appends one time index.
func (e *TimeIndexEncoder) Write(idx uint32) {
	e.buf.AppendUvarint(uint64(idx - e.prev))
	e.prev = idx
	e.count++
}

// DeltaSize returns the number of bytes Write(idx) would append.
func (e *TimeIndexEncoder) DeltaSize(idx uint32) int {
	return UvarintSize(uint64(idx - e.prev))
}

// Bytes returns the encoded column. The slice is valid until the next Write or Reset.
func (e *TimeIndexEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of encoded indices.
func (e *TimeIndexEncoder) Len() int {
	return e.count
}

// Size returns the encoded size in bytes.
func (e *TimeIndexEncoder) Size() int {
	return e.buf.Len()
}

// Reset clears the column and sets the delta base for the next block.
func (e *TimeIndexEncoder) Reset(base uint32) {
	e.buf.Reset()
	e.prev = base
	e.count = 0
}

// Finish returns the buffer to the pool. The encoder is unusable afterwards.
func (e *TimeIndexEncoder) Finish() {
	if e.buf != nil {
		pool.PutBlockBuffer(e.buf)
		e.buf = nil
	}
}

// TimeIndexDecoder decodes a column written by TimeIndexEncoder.
// It is stateless and safe for concurrent use.
type TimeIndexDecoder struct{}

// NewTimeIndexDecoder creates a new decoder.
func NewTimeIndexDecoder() TimeIndexDecoder {
	return TimeIndexDecoder{}
}

// DecodeInto appends count absolute indices to dst.
//
// Returns ErrCorrupt when the column is truncated, a delta overflows uint32,
// or trailing bytes remain.
func (d TimeIndexDecoder) DecodeInto(dst []uint32, data []byte, base uint32, count int) ([]uint32, error) {
	cur := uint64(base)
	offset := 0
	for i := range count {
		delta, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return dst, fmt.Errorf("%w: time column truncated at entry %d", errs.ErrCorrupt, i)
		}
		offset += n
		cur += delta
		if cur > uint64(^uint32(0)) {
			return dst, fmt.Errorf("%w: time index overflow at entry %d", errs.ErrCorrupt, i)
		}
		dst = append(dst, uint32(cur))
	}

	if offset != len(data) {
		return dst, fmt.Errorf("%w: %d trailing bytes in time column", errs.ErrCorrupt, len(data)-offset)
	}

	return dst, nil
}

// UvarintSize returns the encoded length of v as an unsigned varint.
func UvarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}

	return n
}
