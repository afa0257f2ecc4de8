package wavemem

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"

	"github.com/arloliu/wavemem/compress"
	"github.com/arloliu/wavemem/endian"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/internal/hash"
	"github.com/arloliu/wavemem/loader"
	"github.com/arloliu/wavemem/mmap"
	"github.com/arloliu/wavemem/signal"
	"github.com/arloliu/wavemem/timetable"
)

// Change is one transition of a signal at an absolute timestamp.
type Change struct {
	Time  uint64
	Value signal.Value
}

// Stats summarizes the content of a waveform.
type Stats struct {
	Signals    int
	Degraded   int
	Changes    int
	Timestamps int

	// EncodedBytes is the memory held by block payloads and block indexes.
	EncodedBytes int

	Compression compress.CompressionStats
	Cache       CacheStats
}

// Waveform is a loaded, immutable trace.
//
// All query methods are safe for concurrent use. Close must only be called
// once no query is in flight.
type Waveform struct {
	hier     *hierarchy.Hierarchy
	table    *timetable.Table
	signals  []*signal.Signal
	degraded *bitset.BitSet
	region   *mmap.Region
	stats    compress.CompressionStats

	cache     *blockCache
	cacheSize int
	closed    atomic.Bool
}

// Load ingests src with a new loader and wraps the result in a Waveform.
//
// Loader options are passed with WithLoaderOptions. A failed load never
// returns a partial Waveform.
func Load(ctx context.Context, src loader.Source, opts ...Option) (*Waveform, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	l, err := loader.New(cfg.loaderOpts...)
	if err != nil {
		return nil, err
	}

	out, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	return newWaveform(out, cfg)
}

// New wraps the output of a finished load in a Waveform.
// Loader options in opts are ignored.
func New(out *loader.Output, opts ...Option) (*Waveform, error) {
	if out == nil || out.Hierarchy == nil || out.Table == nil {
		return nil, fmt.Errorf("%w: incomplete loader output", errs.ErrInvalidOption)
	}
	if len(out.Signals) != out.Hierarchy.NumSignals() {
		return nil, fmt.Errorf("%w: %d signals for %d hierarchy slots",
			errs.ErrInvalidOption, len(out.Signals), out.Hierarchy.NumSignals())
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newWaveform(out, cfg)
}

func newWaveform(out *loader.Output, cfg *Config) (*Waveform, error) {
	w := &Waveform{
		hier:      out.Hierarchy,
		table:     out.Table,
		signals:   out.Signals,
		degraded:  out.Degraded,
		region:    out.Region,
		stats:     out.Stats,
		cacheSize: cfg.cacheSize,
	}
	if w.degraded == nil {
		w.degraded = bitset.New(uint(len(w.signals)))
	}

	if cfg.cacheSize > 0 {
		c, err := newBlockCache(cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrInvalidOption, err)
		}
		w.cache = c
	}

	return w, nil
}

// Hierarchy returns the scope tree of the trace.
func (w *Waveform) Hierarchy() *hierarchy.Hierarchy {
	return w.hier
}

// TimeTable returns the global time table.
func (w *Waveform) TimeTable() *timetable.Table {
	return w.table
}

// SignalIDs returns the ids of all signals in hierarchy order.
func (w *Waveform) SignalIDs() []hierarchy.SignalID {
	ids := make([]hierarchy.SignalID, 0, len(w.signals))
	for _, s := range w.signals {
		ids = append(ids, s.ID())
	}

	return ids
}

// Signal returns the encoded signal with the given id.
// Degraded signals are returned as well; check Signal.Degraded.
func (w *Waveform) Signal(id hierarchy.SignalID) (*signal.Signal, error) {
	if w.closed.Load() {
		return nil, errs.ErrClosed
	}

	ref, ok := w.hier.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownSignal, id)
	}

	return w.signals[ref], nil
}

// Degraded reports whether the signal with the given id was replaced by a
// placeholder during a FailIsolate load.
func (w *Waveform) Degraded(id hierarchy.SignalID) bool {
	ref, ok := w.hier.Lookup(id)
	if !ok {
		return false
	}

	return w.degraded.Test(uint(ref))
}

// ValueAt returns the value of a signal at time t.
//
// The value is the one set by the latest change at or before t. Times before
// the first change of the signal, including times before the trace start,
// yield the signal's sentinel value.
//
// Returns ErrUnknownSignal for an id not in the hierarchy and the recorded
// MalformedSignal error for a degraded signal.
func (w *Waveform) ValueAt(id hierarchy.SignalID, t uint64) (signal.Value, error) {
	sig, err := w.querySignal(id)
	if err != nil {
		return signal.Value{}, err
	}

	idx, err := w.table.LookupIndex(t)
	if err != nil {
		return sig.Sentinel(), nil //nolint:nilerr
	}

	return w.valueAtIndex(sig, idx)
}

// ChangesIn yields the transitions of a signal with timestamps in [start, end].
//
// The sequence is lazy, restartable and strictly ordered by time. A change
// that repeats the value already in force is skipped; the value in force just
// before start seeds the comparison. The sequence is empty when start > end.
// A failure is yielded once as the final element.
func (w *Waveform) ChangesIn(id hierarchy.SignalID, start, end uint64) iter.Seq2[Change, error] {
	return func(yield func(Change, error) bool) {
		sig, err := w.querySignal(id)
		if err != nil {
			yield(Change{}, err)
			return
		}

		lo, hi, ok := w.table.Span(start, end)
		if !ok {
			return
		}

		prev := sig.Sentinel()
		if lo > 0 {
			prev, err = w.valueAtIndex(sig, lo-1)
			if err != nil {
				yield(Change{}, err)
				return
			}
		}

		first, found := sig.FindBlock(lo)
		if !found {
			first = 0
		}

		for ref := first; int(ref) < sig.NumBlocks(); ref++ {
			entry, _ := sig.Block(ref)
			if entry.FirstIndex > hi {
				return
			}

			blk, err := w.block(sig, ref)
			if err != nil {
				yield(Change{}, err)
				return
			}

			for i := blk.SearchFrom(lo); i < blk.Len(); i++ {
				idx := blk.Index(i)
				if idx > hi {
					return
				}

				v := blk.At(i)
				if v.Equal(prev) {
					continue
				}
				prev = v

				ts, err := w.table.Get(idx)
				if err != nil {
					yield(Change{}, fmt.Errorf("%w: signal %d: %w", errs.ErrCorrupt, id, err))
					return
				}
				if !yield(Change{Time: ts, Value: v}, nil) {
					return
				}
			}
		}
	}
}

// Stats returns size and cache statistics of the waveform.
func (w *Waveform) Stats() Stats {
	st := Stats{
		Signals:     len(w.signals),
		Degraded:    int(w.degraded.Count()), //nolint:gosec
		Timestamps:  w.table.Len(),
		Compression: w.stats,
	}
	for _, s := range w.signals {
		st.Changes += s.Len()
		st.EncodedBytes += s.Size()
	}

	if w.cache != nil {
		st.Cache = CacheStats{
			Capacity: w.cacheSize,
			Len:      w.cache.lru.Len(),
			Hits:     w.cache.hits.Load(),
			Misses:   w.cache.misses.Load(),
		}
	}

	return st
}

// Fingerprint returns an xxHash64 over the time table, the hierarchy and the
// encoded blocks of every signal.
//
// Two loads of the same input with the same encoder settings produce the same
// fingerprint regardless of the worker count.
func (w *Waveform) Fingerprint() (uint64, error) {
	if w.closed.Load() {
		return 0, errs.ErrClosed
	}

	engine := endian.GetLittleEndianEngine()
	d := hash.NewDigest()

	d.WriteUint64(uint64(w.table.Len()))
	for _, ts := range w.table.All() {
		d.WriteUint64(ts)
	}

	d.WriteUint64(uint64(w.hier.NumNodes()))
	for _, n := range w.hier.Walk() {
		d.WriteString(n.Name)
		d.WriteString(n.Type)
		d.WriteUint64(uint64(n.Kind))
		d.WriteUint64(uint64(n.Parent))
		d.WriteUint64(uint64(n.Signal))
	}

	for _, s := range w.signals {
		d.WriteUint64(uint64(s.ID()))
		d.WriteUint64(uint64(s.Domain()))
		d.WriteUint64(uint64(s.Width())) //nolint:gosec
		if err := s.Err(); err != nil {
			d.WriteString(err.Error())
			continue
		}
		d.WriteUint64(uint64(s.Len())) //nolint:gosec
		d.WriteBytes(s.IndexBytes(engine))
		for ref := range s.NumBlocks() {
			d.WriteBytes(s.Payload(signal.BlockRef(ref)))
		}
	}

	return d.Sum64(), nil
}

// Close releases the encoded signals, the block cache and the mapped region.
// Every later query returns ErrClosed.
func (w *Waveform) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	if w.cache != nil {
		w.cache.purge()
	}
	for _, s := range w.signals {
		s.Release()
	}

	if w.region != nil {
		return w.region.Close()
	}

	return nil
}

func (w *Waveform) querySignal(id hierarchy.SignalID) (*signal.Signal, error) {
	sig, err := w.Signal(id)
	if err != nil {
		return nil, err
	}
	if err := sig.Err(); err != nil {
		return nil, err
	}

	return sig, nil
}

// valueAtIndex returns the value in force at time index idx.
func (w *Waveform) valueAtIndex(sig *signal.Signal, idx timetable.Index) (signal.Value, error) {
	ref, ok := sig.FindBlock(idx)
	if !ok {
		return sig.Sentinel(), nil
	}

	blk, err := w.block(sig, ref)
	if err != nil {
		return signal.Value{}, err
	}

	i := blk.Search(idx)
	if i < 0 {
		return sig.Sentinel(), nil
	}

	return blk.At(i), nil
}

// block returns a decoded block, going through the cache when enabled.
func (w *Waveform) block(sig *signal.Signal, ref signal.BlockRef) (*signal.DecodedBlock, error) {
	if w.cache == nil {
		return sig.DecodeBlock(ref)
	}

	key := blockKey{signal: sig.Ref(), block: ref}
	if blk, ok := w.cache.get(key); ok {
		return blk, nil
	}

	blk, err := sig.DecodeBlock(ref)
	if err != nil {
		return nil, err
	}
	w.cache.add(key, blk)

	return blk, nil
}
