// Package timetable implements the shared, deduplicated catalogue of every
// timestamp referenced by a trace.
//
// Signals never store timestamps. They store time indices, positions into the
// Table, which keeps per-signal deltas small and makes cross-signal ordering a
// plain integer comparison.
package timetable

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"

	"github.com/arloliu/wavemem/errs"
)

// Index is a position in a Table.
type Index = uint32

// MaxLen is the largest number of distinct timestamps a Table can hold.
const MaxLen = math.MaxUint32

// Builder accumulates timestamps during the sequential ingestion pass.
//
// Timestamps interned in non-decreasing order are appended in amortized O(1).
// Timestamps that arrive out of order are parked and merged by sort+dedup when
// Build is called.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	times   []uint64
	pending []uint64
}

// NewBuilder creates a builder with room for capacity timestamps.
func NewBuilder(capacity int) *Builder {
	return &Builder{
		times: make([]uint64, 0, capacity),
	}
}

// Intern records ts.
//
// When ts is not smaller than the last interned timestamp, Intern returns its
// index and ok=true. Interning the same timestamp again returns the same index.
// Otherwise ts is parked for the final merge and ok is false; its index, and
// the index of every later timestamp, is only known after Build.
//
// Parameters:
//   - ts: Timestamp in the trace's time unit
//
// Returns:
//   - Index: Index of ts, valid when ok is true and Sorted() still holds at Build
//   - bool: Whether the index was assigned immediately
func (b *Builder) Intern(ts uint64) (Index, bool) {
	n := len(b.times)
	if n > 0 {
		last := b.times[n-1]
		if ts == last {
			return Index(n - 1), true
		}
		if ts < last {
			b.pending = append(b.pending, ts)
			return 0, false
		}
	}

	b.times = append(b.times, ts)

	return Index(n), true //nolint:gosec
}

// InternBatch parks a batch of timestamps in any order for the final merge.
func (b *Builder) InternBatch(batch []uint64) {
	b.pending = append(b.pending, batch...)
}

// Sorted reports whether every timestamp so far arrived in order, in which case
// the indices returned by Intern are final.
func (b *Builder) Sorted() bool {
	return len(b.pending) == 0
}

// Len returns the number of in-order distinct timestamps interned so far.
// Parked timestamps are not counted.
func (b *Builder) Len() int {
	return len(b.times)
}

// Build merges parked timestamps and freezes the table.
// The builder must not be used afterwards.
//
// Returns:
//   - *Table: Frozen table
//   - error: ErrInvalidTime if the table would exceed MaxLen entries
func (b *Builder) Build() (*Table, error) {
	times := b.times
	if len(b.pending) > 0 {
		times = append(times, b.pending...)
		slices.Sort(times)
		times = slices.Compact(times)
	}
	b.times, b.pending = nil, nil

	if uint64(len(times)) > MaxLen {
		return nil, fmt.Errorf("%w: %d distinct timestamps exceed the table limit", errs.ErrInvalidTime, len(times))
	}

	return &Table{times: slices.Clip(times)}, nil
}

// Table is an immutable, strictly increasing sequence of timestamps.
// It is safe for concurrent use.
type Table struct {
	times []uint64
}

// New creates a table from timestamps that are already strictly increasing.
//
// Returns:
//   - *Table: Table referencing a copy of times
//   - error: ErrInvalidTime if times is not strictly increasing
func New(times []uint64) (*Table, error) {
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: timestamp %d at index %d does not increase", errs.ErrInvalidTime, times[i], i)
		}
	}

	return &Table{times: slices.Clone(times)}, nil
}

// Len returns the number of distinct timestamps.
func (t *Table) Len() int {
	return len(t.times)
}

// Get returns the timestamp at index i.
func (t *Table) Get(i Index) (uint64, error) {
	if int(i) >= len(t.times) {
		return 0, fmt.Errorf("%w: time index %d outside [0,%d)", errs.ErrInvalidTime, i, len(t.times))
	}

	return t.times[i], nil
}

// LookupIndex returns the index of the latest timestamp not after ts.
//
// Returns ErrInvalidTime when ts precedes the first timestamp or the table is
// empty. LookupIndex(Get(i)) == i for every valid i.
func (t *Table) LookupIndex(ts uint64) (Index, error) {
	// first index with times[i] > ts
	i := sort.Search(len(t.times), func(i int) bool { return t.times[i] > ts })
	if i == 0 {
		return 0, fmt.Errorf("%w: time %d precedes the trace start", errs.ErrInvalidTime, ts)
	}

	return Index(i - 1), nil //nolint:gosec
}

// Exact returns the index of ts if it is present in the table.
func (t *Table) Exact(ts uint64) (Index, bool) {
	i, found := slices.BinarySearch(t.times, ts)
	return Index(i), found //nolint:gosec
}

// Span returns the index range [lo, hi] of timestamps within [start, end].
// ok is false when no timestamp of the table falls in the range.
func (t *Table) Span(start, end uint64) (lo, hi Index, ok bool) {
	if start > end {
		return 0, 0, false
	}

	l, _ := slices.BinarySearch(t.times, start)
	h := sort.Search(len(t.times), func(i int) bool { return t.times[i] > end })
	if l >= h {
		return 0, 0, false
	}

	return Index(l), Index(h - 1), true //nolint:gosec
}

// Locate returns the index of ts, which must be present in the table.
//
// hint is where the search starts: callers resolving one signal's
// non-decreasing change times pass the previous result, so the window only
// moves forward. A ts before the hint is still found.
//
// Returns ErrInvalidTime if ts is not in the table.
func (t *Table) Locate(ts uint64, hint Index) (Index, error) {
	var (
		i     int
		found bool
	)

	h := min(int(hint), len(t.times))
	if h < len(t.times) && ts >= t.times[h] {
		i, found = slices.BinarySearch(t.times[h:], ts)
		i += h
	} else {
		i, found = slices.BinarySearch(t.times[:h], ts)
	}
	if !found {
		return 0, fmt.Errorf("%w: timestamp %d is not in the time table", errs.ErrInvalidTime, ts)
	}

	return Index(i), nil //nolint:gosec
}

// First returns the earliest timestamp.
func (t *Table) First() (uint64, bool) {
	if len(t.times) == 0 {
		return 0, false
	}

	return t.times[0], true
}

// Last returns the latest timestamp.
func (t *Table) Last() (uint64, bool) {
	if len(t.times) == 0 {
		return 0, false
	}

	return t.times[len(t.times)-1], true
}

// All yields every (index, timestamp) pair in ascending order.
func (t *Table) All() iter.Seq2[Index, uint64] {
	return func(yield func(Index, uint64) bool) {
		for i, ts := range t.times {
			if !yield(Index(i), ts) { //nolint:gosec
				return
			}
		}
	}
}

// Size returns the memory held by the timestamps in bytes.
func (t *Table) Size() int {
	return len(t.times) * 8
}
