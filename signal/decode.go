package signal

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/arloliu/wavemem/encoding"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/section"
	"github.com/arloliu/wavemem/timetable"
)

// DecodedBlock is a raw block with its time indices and value positions
// materialized for binary search.
//
// A DecodedBlock is immutable and safe for concurrent use, which lets the
// query engine share decoded blocks through its cache.
type DecodedBlock struct {
	domain format.Domain
	width  int
	times  []timetable.Index
	spans  []encoding.Span
	values []byte
}

// DecodeBlock parses a raw block described by entry.
//
// The raw layout is uvarint(len(timeColumn)) | timeColumn | valueColumn.
// Returns ErrCorrupt when the columns disagree with the entry or with the
// signal declaration.
func DecodeBlock(raw []byte, entry section.BlockIndexEntry, domain format.Domain, width int) (*DecodedBlock, error) {
	timeLen, n := binary.Uvarint(raw)
	if n <= 0 || timeLen > uint64(len(raw)-n) {
		return nil, fmt.Errorf("%w: bad time column length", errs.ErrCorrupt)
	}
	timeCol := raw[n : n+int(timeLen)]
	valueCol := raw[n+int(timeLen):]

	count := int(entry.Count)
	times, err := encoding.NewTimeIndexDecoder().DecodeInto(make([]timetable.Index, 0, count), timeCol, entry.FirstIndex, count)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 || times[0] != entry.FirstIndex || times[len(times)-1] != entry.LastIndex {
		return nil, fmt.Errorf("%w: time column does not match block range [%d,%d]",
			errs.ErrCorrupt, entry.FirstIndex, entry.LastIndex)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: time index %d does not increase at entry %d", errs.ErrCorrupt, times[i], i)
		}
	}

	spans, err := encoding.NewValueDecoder(fixedValueSize(domain, width)).SpansInto(make([]encoding.Span, 0, count), valueCol, count)
	if err != nil {
		return nil, err
	}

	if domain != format.DomainString {
		for i, sp := range spans {
			if !validStoredLen(domain, width, int(sp.Len)) {
				return nil, fmt.Errorf("%w: value %d has %d bytes", errs.ErrCorrupt, i, sp.Len)
			}
		}
	}

	return &DecodedBlock{
		domain: domain,
		width:  width,
		times:  times,
		spans:  spans,
		values: valueCol,
	}, nil
}

// Len returns the number of changes in the block.
func (b *DecodedBlock) Len() int {
	return len(b.times)
}

// Index returns the time index of change i.
func (b *DecodedBlock) Index(i int) timetable.Index {
	return b.times[i]
}

// Search returns the position of the latest change at or before idx, or -1
// when the block starts after idx.
func (b *DecodedBlock) Search(idx timetable.Index) int {
	return sort.Search(len(b.times), func(i int) bool { return b.times[i] > idx }) - 1
}

// SearchFrom returns the position of the first change at or after idx, or Len()
// when every change precedes idx.
func (b *DecodedBlock) SearchFrom(idx timetable.Index) int {
	return sort.Search(len(b.times), func(i int) bool { return b.times[i] >= idx })
}

// At returns the value of change i as an owned Value.
func (b *DecodedBlock) At(i int) Value {
	sp := b.spans[i]
	data, _ := appendCanonicalFromStored(nil, b.domain, b.width, b.values[sp.Off:sp.Off+sp.Len])
	if data == nil {
		data = []byte{}
	}

	return Value{domain: b.domain, width: b.width, data: data}
}

// Size returns the approximate memory held by the decoded block in bytes.
func (b *DecodedBlock) Size() int {
	return len(b.times)*4 + len(b.spans)*8 + len(b.values)
}
