package loader

import (
	"fmt"
	"io"
	"iter"

	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/mmap"
)

// Event is one value change emitted by a format front-end.
type Event struct {
	// SignalID is the front-end id of the changed signal.
	SignalID hierarchy.SignalID

	// Time is the timestamp in the trace's time unit.
	Time uint64

	// Raw is the value in the front-end's raw form, see signal.ParseValue.
	// The loader packs it before the next event, so the front-end may reuse
	// the buffer.
	Raw []byte
}

// Source is what a format front-end provides to the loader.
//
// Events must be time-monotonic per signal; events of different signals may
// interleave in any order.
type Source interface {
	// Hierarchy returns the static scope and variable tree.
	Hierarchy() hierarchy.Description

	// Events yields the change stream. A non-nil error ends the load.
	Events() iter.Seq2[Event, error]
}

// SliceSource is a Source over an in-memory event list.
type SliceSource struct {
	Desc    hierarchy.Description
	Changes []Event
}

var _ Source = (*SliceSource)(nil)

// Hierarchy implements Source.
func (s *SliceSource) Hierarchy() hierarchy.Description {
	return s.Desc
}

// Events implements Source.
func (s *SliceSource) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for _, ev := range s.Changes {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// RegionChange locates the raw value of one change inside a mapped trace file.
type RegionChange struct {
	SignalID hierarchy.SignalID
	Time     uint64

	// Off and Len give the byte range of the raw value in the region.
	Off int64
	Len int
}

// RegionSource is a Source whose raw values are read from a mapped trace file.
//
// Values are copied out of the mapping with Region.ReadAt, so a file truncated
// under the load ends it with mmap.ErrFault instead of crashing the process.
// Pass the same region to WithMappedRegion to keep it open for the lifetime of
// the waveform.
type RegionSource struct {
	Desc    hierarchy.Description
	Region  *mmap.Region
	Changes []RegionChange
}

var _ Source = (*RegionSource)(nil)

// Hierarchy implements Source.
func (s *RegionSource) Hierarchy() hierarchy.Description {
	return s.Desc
}

// Events implements Source. The yielded Raw buffer is reused between events.
func (s *RegionSource) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		var scratch []byte
		for i, c := range s.Changes {
			if c.Len < 0 {
				yield(Event{}, fmt.Errorf("change %d of signal %d: negative value length %d", i, c.SignalID, c.Len))
				return
			}
			if cap(scratch) < c.Len {
				scratch = make([]byte, c.Len)
			}
			raw := scratch[:c.Len]

			if n, err := s.Region.ReadAt(raw, c.Off); n < c.Len {
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				yield(Event{}, fmt.Errorf("change %d of signal %d at offset %d: %w", i, c.SignalID, c.Off, err))

				return
			}

			if !yield(Event{SignalID: c.SignalID, Time: c.Time, Raw: raw}, nil) {
				return
			}
		}
	}
}
