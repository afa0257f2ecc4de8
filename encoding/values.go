package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/internal/pool"
)

// MaxFixedValueSize is the largest packed value stored without a length prefix.
// Wider vectors, strings and reals use length-prefixed byte runs.
const MaxFixedValueSize = 8

// Span locates one value inside a decoded value column.
type Span struct {
	Off uint32
	Len uint32
}

// ValueEncoder encodes the value column of a block.
//
// In fixed mode every value occupies exactly fixed bytes. Otherwise each value
// is written as a uvarint length followed by its bytes, which lets a column mix
// dense two-state runs with full four-state runs of the same signal.
type ValueEncoder struct {
	buf   *pool.ByteBuffer
	fixed int
	count int
}

var _ ColumnarEncoder[[]byte] = (*ValueEncoder)(nil)

// NewValueEncoder creates a value column encoder.
// fixed > 0 selects fixed-size mode, 0 selects length-prefixed runs.
func NewValueEncoder(fixed int) *ValueEncoder {
	return &ValueEncoder{
		buf:   pool.GetBlockBuffer(),
		fixed: fixed,
	}
}

// Fixed returns the fixed value size, or 0 in length-prefixed mode.
func (e *ValueEncoder) Fixed() int {
	return e.fixed
}

// EncodedSize returns the number of bytes Write(packed) would append.
func (e *ValueEncoder) EncodedSize(packed []byte) int {
	if e.fixed > 0 {
		return e.fixed
	}

	return UvarintSize(uint64(len(packed))) + len(packed)
}

// Write appends one packed value.
// In fixed mode the caller guarantees len(packed) == Fixed().
func (e *ValueEncoder) Write(packed []byte) {
	if e.fixed == 0 {
		e.buf.AppendUvarint(uint64(len(packed)))
	}
	e.buf.MustWrite(packed)
	e.count++
}

// Bytes returns the encoded column. The slice is valid until the next Write or Reset.
func (e *ValueEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of encoded values.
func (e *ValueEncoder) Len() int {
	return e.count
}

// Size returns the encoded size in bytes.
func (e *ValueEncoder) Size() int {
	return e.buf.Len()
}

// Reset clears the column for the next block.
func (e *ValueEncoder) Reset() {
	e.buf.Reset()
	e.count = 0
}

// Finish returns the buffer to the pool. The encoder is unusable afterwards.
func (e *ValueEncoder) Finish() {
	if e.buf != nil {
		pool.PutBlockBuffer(e.buf)
		e.buf = nil
	}
}

// ValueDecoder locates values in a column written by ValueEncoder.
type ValueDecoder struct {
	fixed int
}

// NewValueDecoder creates a decoder matching NewValueEncoder(fixed).
func NewValueDecoder(fixed int) ValueDecoder {
	return ValueDecoder{fixed: fixed}
}

// SpansInto appends the span of each of the count values to dst.
//
// Returns ErrCorrupt when the column is shorter or longer than count values.
func (d ValueDecoder) SpansInto(dst []Span, data []byte, count int) ([]Span, error) {
	if d.fixed > 0 {
		if len(data) != d.fixed*count {
			return dst, fmt.Errorf("%w: value column has %d bytes, want %d", errs.ErrCorrupt, len(data), d.fixed*count)
		}
		for i := range count {
			dst = append(dst, Span{Off: uint32(i * d.fixed), Len: uint32(d.fixed)}) //nolint:gosec
		}

		return dst, nil
	}

	offset := 0
	for i := range count {
		length, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return dst, fmt.Errorf("%w: value length truncated at entry %d", errs.ErrCorrupt, i)
		}
		offset += n
		if length > uint64(len(data)-offset) {
			return dst, fmt.Errorf("%w: value run overflows column at entry %d", errs.ErrCorrupt, i)
		}
		dst = append(dst, Span{Off: uint32(offset), Len: uint32(length)}) //nolint:gosec
		offset += int(length)
	}

	if offset != len(data) {
		return dst, fmt.Errorf("%w: %d trailing bytes in value column", errs.ErrCorrupt, len(data)-offset)
	}

	return dst, nil
}
