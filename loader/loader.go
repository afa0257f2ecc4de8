package loader

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/wavemem/compress"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/internal/options"
	"github.com/arloliu/wavemem/internal/pool"
	"github.com/arloliu/wavemem/mmap"
	"github.com/arloliu/wavemem/signal"
	"github.com/arloliu/wavemem/timetable"
)

// Load phases reported in LoadError.Phase.
const (
	PhaseHierarchy = "hierarchy"
	PhaseScan      = "scan"
	PhaseTimeTable = "timetable"
	PhaseEncode    = "encode"
)

// abortPollMask sets how often the scan phase polls for cancellation.
const abortPollMask = 1<<12 - 1

// Output is the result of a successful load. Nothing in it is mutated afterwards.
type Output struct {
	Hierarchy *hierarchy.Hierarchy
	Table     *timetable.Table

	// Signals holds one signal per hierarchy.Ref.
	Signals []*signal.Signal

	// Degraded marks the refs of signals replaced by placeholders.
	Degraded *bitset.BitSet

	// Region is the mapped trace file handed over with WithMappedRegion, or nil.
	Region *mmap.Region

	// Stats sums the compression statistics of all signals.
	Stats compress.CompressionStats
}

// Loader runs the two-phase ingestion of a trace.
//
// Phase 1 scans the event stream once, sequentially, building the hierarchy
// and the time table and bucketing raw values per signal. Phase 2 encodes the
// buckets on a worker pool; every signal has its own pre-allocated output
// slot, so workers never contend and the result does not depend on which
// worker finishes first.
//
// A Loader may run several loads, one at a time. Abort is sticky.
type Loader struct {
	cfg         *Config
	compression format.CompressionType
	aborted     atomic.Bool
}

// New creates a loader.
//
// Returns ErrInvalidOption when an option is out of range.
func New(opts ...Option) (*Loader, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.progress == nil {
		cfg.progress = &Progress{}
	}

	encCfg, err := signal.NewEncoderConfig(cfg.encoderOpts...)
	if err != nil {
		return nil, err
	}

	return &Loader{cfg: cfg, compression: encCfg.Compression()}, nil
}

// Abort asks running and future loads to stop. Workers observe it between
// signals and between blocks; the load then fails with ErrIngestionAborted.
func (l *Loader) Abort() {
	l.aborted.Store(true)
}

// Progress returns the progress counters of the current load.
func (l *Loader) Progress() *Progress {
	return l.cfg.progress
}

func (l *Loader) log() *zap.Logger {
	if l.cfg.logger != nil {
		return l.cfg.logger
	}

	return Logger()
}

// slot buckets the changes of one signal between the two phases.
//
// Values are packed to their canonical form during the scan and timestamps are
// kept as uvarint deltas, so a slot retains about two bytes per narrow change
// instead of the raw text. The first malformed change is remembered and raised
// in phase 2, where the failure policy decides what to do with it.
type slot struct {
	times  pool.ByteBuffer // uvarint deltas from the previous change time
	values pool.ByteBuffer // canonical values; strings carry a uvarint length
	count  int
	last   uint64
	fail   error
}

// add buckets one change. After the first malformed change the slot drops its
// buffers and ignores the rest of the signal.
func (s *slot) add(info *hierarchy.SignalInfo, size int, ts uint64, raw []byte) {
	if s.fail != nil {
		return
	}

	n := s.count
	s.count++
	if n > 0 && ts < s.last {
		s.drop(errs.NewMalformedSignal(uint64(info.ID), n, "time %d precedes %d", ts, s.last))
		return
	}

	mark := len(s.values.B)
	if size == 0 {
		s.values.AppendUvarint(uint64(len(raw)))
	}
	var err error
	s.values.B, err = signal.Canonicalize(s.values.B, info, n, raw)
	if err != nil {
		s.values.B = s.values.B[:mark]
		s.drop(err)

		return
	}

	s.times.AppendUvarint(ts - s.last)
	s.last = ts
}

func (s *slot) drop(err error) {
	s.fail = err
	s.times.B = nil
	s.values.B = nil
}

// retained returns the bytes held by the slot buffers.
func (s *slot) retained() int {
	return cap(s.times.B) + cap(s.values.B)
}

// Load ingests src. It never returns a partial result: any failure that is
// not isolated by the failure policy discards everything built so far.
//
// Errors are LoadErrors naming the phase and, when known, the signal.
func (l *Loader) Load(ctx context.Context, src Source) (*Output, error) {
	log := l.log()
	progress := l.cfg.progress
	progress.reset()
	start := time.Now()

	h, err := hierarchy.Build(src.Hierarchy(), hierarchy.WithFlattenEmptyScopes(l.cfg.flattenEmptyScopes))
	if err != nil {
		return nil, &errs.LoadError{Phase: PhaseHierarchy, Err: err}
	}

	table, slots, active, err := l.scan(ctx, h, src)
	if err != nil {
		return nil, err
	}
	log.Debug("scan phase done",
		zap.Int("signals", h.NumSignals()),
		zap.Uint("active", active.Count()),
		zap.Int("timestamps", table.Len()),
		zap.Uint64("events", progress.EventsScanned()),
		zap.Duration("elapsed", time.Since(start)))

	signals, failures, err := l.encode(ctx, h, table, slots)
	if err != nil {
		log.Info("load failed", zap.Error(err))
		return nil, err
	}

	out := &Output{
		Hierarchy: h,
		Table:     table,
		Signals:   signals,
		Degraded:  bitset.New(uint(len(signals))),
		Region:    l.cfg.region,
	}
	out.Stats.Algorithm = l.compression
	for ref, sig := range signals {
		if failures[ref] != nil {
			out.Degraded.Set(uint(ref))
			log.Warn("signal degraded",
				zap.Uint64("signal", uint64(sig.ID())),
				zap.Error(failures[ref]))
			continue
		}
		out.Stats.Merge(sig.Stats())
	}

	log.Info("load done",
		zap.Int("signals", len(signals)),
		zap.Uint("degraded", out.Degraded.Count()),
		zap.Int64("blocks", out.Stats.Blocks),
		zap.Float64("ratio", out.Stats.CompressionRatio()),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

func (l *Loader) stopped(ctx context.Context) error {
	if l.aborted.Load() {
		return errs.ErrIngestionAborted
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIngestionAborted, err)
	}

	return nil
}

// scan is phase 1.
func (l *Loader) scan(ctx context.Context, h *hierarchy.Hierarchy, src Source) (*timetable.Table, []slot, *bitset.BitSet, error) {
	progress := l.cfg.progress
	tb := timetable.NewBuilder(0)
	slots := make([]slot, h.NumSignals())
	active := bitset.New(uint(h.NumSignals()))

	sizes := make([]int, h.NumSignals())
	for ref := range sizes {
		info, _ := h.Signal(hierarchy.Ref(ref)) //nolint:gosec
		sizes[ref] = signal.CanonicalSize(info.Domain, info.Width)
	}

	var n uint64
	for ev, err := range src.Events() {
		if err != nil {
			return nil, nil, nil, &errs.LoadError{Phase: PhaseScan, Err: err}
		}
		if n&abortPollMask == 0 {
			if err := l.stopped(ctx); err != nil {
				return nil, nil, nil, &errs.LoadError{Phase: PhaseScan, Err: err}
			}
		}
		n++

		ref, ok := h.Lookup(ev.SignalID)
		if !ok {
			return nil, nil, nil, &errs.LoadError{
				Phase:     PhaseScan,
				SignalID:  uint64(ev.SignalID),
				HasSignal: true,
				Err:       fmt.Errorf("%w: %d", errs.ErrUnknownSignal, ev.SignalID),
			}
		}

		tb.Intern(ev.Time)

		info, _ := h.Signal(ref)
		slots[ref].add(info, sizes[ref], ev.Time, ev.Raw)
		active.Set(uint(ref))

		progress.events.Add(1)
	}

	table, err := tb.Build()
	if err != nil {
		return nil, nil, nil, &errs.LoadError{Phase: PhaseTimeTable, Err: err}
	}

	return table, slots, active, nil
}

// encode is phase 2.
func (l *Loader) encode(ctx context.Context, h *hierarchy.Hierarchy, table *timetable.Table, slots []slot) ([]*signal.Signal, []error, error) {
	n := len(slots)
	signals := make([]*signal.Signal, n)
	failures := make([]error, n)
	l.cfg.progress.total.Store(uint64(n))

	g, gctx := errgroup.WithContext(ctx)

	encOpts := append([]signal.EncoderOption{}, l.cfg.encoderOpts...)
	encOpts = append(encOpts, signal.WithAbortCheck(func() bool {
		return l.stopped(gctx) != nil
	}))
	cfg, err := signal.NewEncoderConfig(encOpts...)
	if err != nil {
		return nil, nil, &errs.LoadError{Phase: PhaseEncode, Err: err}
	}

	workers := min(l.cfg.workers, max(n, 1))
	var cursor atomic.Int64

	for range workers {
		g.Go(func() error {
			for {
				if err := l.stopped(gctx); err != nil {
					return &errs.LoadError{Phase: PhaseEncode, Err: err}
				}

				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}

				info, _ := h.Signal(hierarchy.Ref(i)) //nolint:gosec
				sig, err := encodeSlot(info, &slots[i], table, cfg)
				slots[i] = slot{}
				if err != nil {
					if l.cfg.policy == format.FailIsolate && errors.Is(err, errs.ErrMalformedSignal) {
						signals[i] = signal.NewDegraded(info, err)
						failures[i] = err
						l.cfg.progress.encoded.Add(1)

						continue
					}

					return &errs.LoadError{Phase: PhaseEncode, SignalID: uint64(info.ID), HasSignal: true, Err: err}
				}

				signals[i] = sig
				l.cfg.progress.encoded.Add(1)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return signals, failures, nil
}

// encodeSlot encodes the bucketed changes of one signal.
func encodeSlot(info *hierarchy.SignalInfo, s *slot, table *timetable.Table, cfg *signal.EncoderConfig) (*signal.Signal, error) {
	if s.fail != nil {
		return nil, s.fail
	}

	size := signal.CanonicalSize(info.Domain, info.Width)
	times, values := s.times.B, s.values.B
	enc := signal.NewEncoder(info, cfg)

	var (
		ts  uint64
		idx timetable.Index
	)
	for i := range s.count {
		delta, n := binary.Uvarint(times)
		if n <= 0 {
			enc.Release()
			return nil, fmt.Errorf("%w: signal %d change %d: bad time delta", errs.ErrCorrupt, info.ID, i)
		}
		times = times[n:]
		ts += delta

		var err error
		if idx, err = table.Locate(ts, idx); err != nil {
			enc.Release()
			return nil, err
		}

		vlen := size
		if size == 0 {
			l, n := binary.Uvarint(values)
			if n <= 0 || l > uint64(len(values)-n) {
				enc.Release()
				return nil, fmt.Errorf("%w: signal %d change %d: bad value length", errs.ErrCorrupt, info.ID, i)
			}
			values = values[n:]
			vlen = int(l)
		}
		if vlen > len(values) {
			enc.Release()
			return nil, fmt.Errorf("%w: signal %d change %d: value run truncated", errs.ErrCorrupt, info.ID, i)
		}

		if err := enc.AppendCanonical(idx, values[:vlen]); err != nil {
			enc.Release()
			return nil, err
		}
		values = values[vlen:]
	}

	return enc.Finish()
}
