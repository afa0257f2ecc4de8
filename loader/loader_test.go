package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/wavemem/endian"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/mmap"
	"github.com/arloliu/wavemem/signal"
)

var testEngine = endian.GetLittleEndianEngine()

func scenarioSource() *SliceSource {
	return &SliceSource{
		Desc: hierarchy.Description{Items: []hierarchy.Item{
			hierarchy.Scope("top", "module",
				hierarchy.Var("a", "wire", 1, 1, format.DomainTwoState),
				hierarchy.Var("b", "wire", 2, 8, format.DomainTwoState),
			),
		}},
		Changes: []Event{
			{SignalID: 1, Time: 0, Raw: []byte("0")},
			{SignalID: 2, Time: 0, Raw: []byte("00000000")},
			{SignalID: 1, Time: 5, Raw: []byte("1")},
			{SignalID: 2, Time: 10, Raw: []byte("11111111")},
		},
	}
}

// randomSource interleaves signals so that timestamps arrive out of order
// across signals while staying monotonic per signal.
func randomSource(seed uint64, numSignals, changesPerSignal int) *SliceSource {
	rng := rand.New(rand.NewPCG(seed, seed))

	items := make([]hierarchy.Item, 0, numSignals)
	widths := make([]int, numSignals)
	for i := range numSignals {
		widths[i] = 1 + rng.IntN(70)
		items = append(items, hierarchy.Var(fmt.Sprintf("s%d", i), "wire", hierarchy.SignalID(100+i), widths[i], format.DomainFourState))
	}

	perSignal := make([][]Event, numSignals)
	for i := range numSignals {
		var ts uint64
		for range changesPerSignal {
			ts += uint64(1 + rng.IntN(20))
			raw := make([]byte, widths[i])
			for k := range raw {
				raw[k] = "01xz"[rng.IntN(4)]
			}
			perSignal[i] = append(perSignal[i], Event{SignalID: hierarchy.SignalID(100 + i), Time: ts, Raw: raw})
		}
	}

	var events []Event
	for {
		progressed := false
		for i := range perSignal {
			take := min(len(perSignal[i]), rng.IntN(4))
			events = append(events, perSignal[i][:take]...)
			perSignal[i] = perSignal[i][take:]
			progressed = progressed || len(perSignal[i]) > 0
		}
		if !progressed {
			break
		}
	}

	return &SliceSource{
		Desc:    hierarchy.Description{Items: []hierarchy.Item{hierarchy.Scope("top", "module", items...)}},
		Changes: events,
	}
}

func load(t *testing.T, src Source, opts ...Option) (*Output, error) {
	t.Helper()

	l, err := New(opts...)
	require.NoError(t, err)

	return l.Load(context.Background(), src)
}

func TestLoad_Scenario(t *testing.T) {
	out, err := load(t, scenarioSource())
	require.NoError(t, err)

	require.Equal(t, 3, out.Table.Len())
	require.Len(t, out.Signals, 2)
	require.Equal(t, uint(0), out.Degraded.Count())
	require.Nil(t, out.Region)
	require.Equal(t, signal.DefaultCompression, out.Stats.Algorithm)
	require.Equal(t, int64(2), out.Stats.Blocks)

	var got []string
	for c, err := range out.Signals[0].All() {
		require.NoError(t, err)
		ts, err := out.Table.Get(c.Index)
		require.NoError(t, err)
		got = append(got, fmt.Sprintf("%d:%s", ts, c.Value))
	}
	require.Equal(t, []string{"0:0", "5:1"}, got)
}

func TestLoad_DeterministicAcrossWorkers(t *testing.T) {
	src := randomSource(11, 40, 300)

	var reference *Output
	for _, workers := range []int{1, 3, 8} {
		out, err := load(t, src, WithWorkers(workers), WithEncoderOptions(signal.WithMaxBlockEntries(64)))
		require.NoError(t, err)

		if reference == nil {
			reference = out
			continue
		}

		require.Equal(t, reference.Table.Len(), out.Table.Len())
		require.Equal(t, reference.Stats, out.Stats)
		for ref, sig := range out.Signals {
			want := reference.Signals[ref]
			require.Equal(t, want.ID(), sig.ID())
			require.Equal(t, want.IndexBytes(testEngine), sig.IndexBytes(testEngine))
			for b := range sig.NumBlocks() {
				require.Equal(t, want.Payload(signal.BlockRef(b)), sig.Payload(signal.BlockRef(b)))
			}
		}
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	src := randomSource(5, 10, 500)
	out, err := load(t, src, WithWorkers(4), WithCompression(format.CompressionZstd))
	require.NoError(t, err)

	// expected per-signal sequences straight from the event list
	want := map[hierarchy.SignalID][]Event{}
	for _, ev := range src.Changes {
		want[ev.SignalID] = append(want[ev.SignalID], ev)
	}

	for _, sig := range out.Signals {
		events := want[sig.ID()]
		i := 0
		for c, err := range sig.All() {
			require.NoError(t, err)
			ts, err := out.Table.Get(c.Index)
			require.NoError(t, err)
			require.Equal(t, events[i].Time, ts)
			require.Equal(t, string(events[i].Raw), c.Value.String())
			i++
		}
		require.Equal(t, len(events), i)
	}
}

func TestLoad_UnknownSignal(t *testing.T) {
	src := scenarioSource()
	src.Changes = append(src.Changes, Event{SignalID: 99, Time: 20, Raw: []byte("1")})

	_, err := load(t, src)
	require.ErrorIs(t, err, errs.ErrUnknownSignal)

	var le *errs.LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PhaseScan, le.Phase)
	require.True(t, le.HasSignal)
	require.Equal(t, uint64(99), le.SignalID)
}

func TestLoad_MalformedAbort(t *testing.T) {
	src := &SliceSource{
		Desc: hierarchy.Description{Items: []hierarchy.Item{
			hierarchy.Var("nibble", "wire", 4, 4, format.DomainTwoState),
			hierarchy.Var("ok", "wire", 5, 1, format.DomainTwoState),
		}},
		Changes: []Event{
			{SignalID: 5, Time: 0, Raw: []byte("1")},
			{SignalID: 4, Time: 0, Raw: []byte("10101010")},
		},
	}

	_, err := load(t, src)
	require.ErrorIs(t, err, errs.ErrMalformedSignal)

	var le *errs.LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PhaseEncode, le.Phase)
	require.Equal(t, uint64(4), le.SignalID)

	var mse *errs.MalformedSignalError
	require.ErrorAs(t, err, &mse)
	require.Equal(t, uint64(4), mse.SignalID)
}

func TestLoad_MalformedIsolate(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	src := &SliceSource{
		Desc: hierarchy.Description{Items: []hierarchy.Item{
			hierarchy.Var("nibble", "wire", 4, 4, format.DomainTwoState),
			hierarchy.Var("ok", "wire", 5, 1, format.DomainTwoState),
			hierarchy.Var("backwards", "wire", 6, 1, format.DomainTwoState),
		}},
		Changes: []Event{
			{SignalID: 5, Time: 0, Raw: []byte("1")},
			{SignalID: 4, Time: 0, Raw: []byte("10101010")},
			{SignalID: 6, Time: 9, Raw: []byte("1")},
			{SignalID: 6, Time: 3, Raw: []byte("0")},
		},
	}

	out, err := load(t, src, WithFailurePolicy(format.FailIsolate), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.Equal(t, uint(2), out.Degraded.Count())
	require.True(t, out.Degraded.Test(0))
	require.False(t, out.Degraded.Test(1))
	require.True(t, out.Degraded.Test(2))

	require.True(t, out.Signals[0].Degraded())
	require.ErrorIs(t, out.Signals[0].Err(), errs.ErrMalformedSignal)
	require.False(t, out.Signals[1].Degraded())
	require.Equal(t, 1, out.Signals[1].Len())

	require.Equal(t, 2, logs.FilterMessage("signal degraded").Len())
}

func TestLoad_InvalidHierarchy(t *testing.T) {
	src := &SliceSource{Desc: hierarchy.Description{Items: []hierarchy.Item{
		hierarchy.Var("a", "wire", 1, 0, format.DomainTwoState),
	}}}

	_, err := load(t, src)
	require.ErrorIs(t, err, errs.ErrInvalidHierarchy)

	var le *errs.LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PhaseHierarchy, le.Phase)
	require.False(t, le.HasSignal)
}

type failingSource struct {
	*SliceSource
	err error
}

func (s *failingSource) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for ev, err := range s.SliceSource.Events() {
			if !yield(ev, err) {
				return
			}
		}
		yield(Event{}, s.err)
	}
}

func TestLoad_SourceError(t *testing.T) {
	cause := errors.New("truncated trace")
	_, err := load(t, &failingSource{SliceSource: scenarioSource(), err: cause})
	require.ErrorIs(t, err, cause)

	var le *errs.LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PhaseScan, le.Phase)
}

func TestLoad_Abort(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	l.Abort()

	out, err := l.Load(context.Background(), randomSource(1, 5, 10))
	require.ErrorIs(t, err, errs.ErrIngestionAborted)
	require.Nil(t, out)
}

func TestLoad_AbortDuringEncode(t *testing.T) {
	var l *Loader
	src := randomSource(2, 50, 200)

	// abort from the encoder's block check once a few blocks were written
	blocks := 0
	var err error
	l, err = New(WithWorkers(1), WithEncoderOptions(
		signal.WithMaxBlockEntries(8),
		signal.WithAbortCheck(func() bool {
			blocks++
			if blocks == 20 {
				l.Abort()
			}
			return false
		}),
	))
	require.NoError(t, err)

	out, err := l.Load(context.Background(), src)
	require.ErrorIs(t, err, errs.ErrIngestionAborted)
	require.Nil(t, out)
	require.Less(t, l.Progress().SignalsEncoded(), uint64(50))
}

func TestLoad_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l, err := New()
	require.NoError(t, err)

	_, err = l.Load(ctx, scenarioSource())
	require.ErrorIs(t, err, errs.ErrIngestionAborted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Progress(t *testing.T) {
	p := &Progress{}
	l, err := New(WithProgress(p))
	require.NoError(t, err)
	require.Same(t, p, l.Progress())

	_, err = l.Load(context.Background(), scenarioSource())
	require.NoError(t, err)
	require.Equal(t, uint64(4), p.EventsScanned())
	require.Equal(t, uint64(2), p.SignalsTotal())
	require.Equal(t, uint64(2), p.SignalsEncoded())
	require.InDelta(t, 1.0, p.Fraction(), 1e-9)
}

func TestLoad_MappedRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	require.NoError(t, os.WriteFile(path, []byte("0100000000111111111"), 0o600))

	region, err := mmap.Open(path)
	require.NoError(t, err)
	data := region.Bytes()

	// raw values alias the mapping; the loader packs them during the scan
	src := scenarioSource()
	src.Changes = []Event{
		{SignalID: 1, Time: 0, Raw: data[0:1]},
		{SignalID: 1, Time: 5, Raw: data[1:2]},
		{SignalID: 2, Time: 0, Raw: data[2:10]},
		{SignalID: 2, Time: 10, Raw: data[11:19]},
	}

	out, err := load(t, src, WithMappedRegion(region))
	require.NoError(t, err)
	require.Same(t, region, out.Region)
	require.NoError(t, out.Region.Close())

	var last string
	for c, err := range out.Signals[1].All() {
		require.NoError(t, err)
		last = c.Value.String()
	}
	require.Equal(t, "11111111", last)
}

func TestLoad_RegionSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	require.NoError(t, os.WriteFile(path, []byte("01|00000000|11111111|IDLE"), 0o600))

	region, err := mmap.Open(path)
	require.NoError(t, err)
	defer region.Close()

	desc := hierarchy.Description{Items: []hierarchy.Item{
		hierarchy.Var("a", "wire", 1, 1, format.DomainTwoState),
		hierarchy.Var("b", "wire", 2, 8, format.DomainTwoState),
		hierarchy.Var("state", "string", 3, 0, format.DomainString),
	}}

	t.Run("values read from the mapping", func(t *testing.T) {
		src := &RegionSource{Desc: desc, Region: region, Changes: []RegionChange{
			{SignalID: 1, Time: 0, Off: 0, Len: 1},
			{SignalID: 2, Time: 0, Off: 3, Len: 8},
			{SignalID: 1, Time: 5, Off: 1, Len: 1},
			{SignalID: 3, Time: 7, Off: 21, Len: 4},
			{SignalID: 2, Time: 10, Off: 12, Len: 8},
		}}

		out, err := load(t, src)
		require.NoError(t, err)

		want := map[int][]string{0: {"0", "1"}, 1: {"00000000", "11111111"}, 2: {"IDLE"}}
		for ref, values := range want {
			var got []string
			for c, err := range out.Signals[ref].All() {
				require.NoError(t, err)
				got = append(got, c.Value.String())
			}
			require.Equal(t, values, got)
		}
	})

	t.Run("range outside the mapping", func(t *testing.T) {
		src := &RegionSource{Desc: desc, Region: region, Changes: []RegionChange{
			{SignalID: 1, Time: 0, Off: 0, Len: 1},
			{SignalID: 2, Time: 1, Off: 20, Len: 8},
		}}

		_, err := load(t, src)
		require.ErrorIs(t, err, io.EOF)

		var le *errs.LoadError
		require.ErrorAs(t, err, &le)
		require.Equal(t, PhaseScan, le.Phase)
	})

	t.Run("negative length", func(t *testing.T) {
		src := &RegionSource{Desc: desc, Region: region, Changes: []RegionChange{
			{SignalID: 1, Time: 0, Off: 0, Len: -1},
		}}

		_, err := load(t, src)
		require.Error(t, err)
	})
}

func TestScan_SlotRetention(t *testing.T) {
	const events = 100_000

	desc := hierarchy.Description{Items: []hierarchy.Item{
		hierarchy.Var("clk", "wire", 1, 1, format.DomainTwoState),
		hierarchy.Var("bus", "wire", 2, 8, format.DomainFourState),
	}}
	changes := make([]Event, 0, 2*events)
	for i := range events {
		ts := uint64(i) * 10
		changes = append(changes,
			Event{SignalID: 1, Time: ts, Raw: []byte{"01"[i%2]}},
			Event{SignalID: 2, Time: ts, Raw: []byte("01xz01xz")},
		)
	}

	h, err := hierarchy.Build(desc)
	require.NoError(t, err)
	l, err := New()
	require.NoError(t, err)

	_, slots, _, err := l.scan(context.Background(), h, &SliceSource{Desc: desc, Changes: changes})
	require.NoError(t, err)

	t.Run("one bit signal", func(t *testing.T) {
		s := &slots[0]
		require.Equal(t, events, s.count)
		require.NoError(t, s.fail)
		// one delta byte and one packed byte per change
		require.Equal(t, 2*events, len(s.times.B)+len(s.values.B))
		require.LessOrEqual(t, s.retained(), 5*events)
	})

	t.Run("eight bit four state signal", func(t *testing.T) {
		s := &slots[1]
		require.Equal(t, events, s.count)
		require.Equal(t, 3*events, len(s.times.B)+len(s.values.B))
		require.LessOrEqual(t, s.retained(), 7*events)
	})
}

func TestScan_SlotKeepsFirstFailure(t *testing.T) {
	desc := hierarchy.Description{Items: []hierarchy.Item{
		hierarchy.Var("nibble", "wire", 4, 4, format.DomainTwoState),
	}}
	src := &SliceSource{Desc: desc, Changes: []Event{
		{SignalID: 4, Time: 0, Raw: []byte("1010")},
		{SignalID: 4, Time: 1, Raw: []byte("0101")},
		{SignalID: 4, Time: 2, Raw: []byte("10x0")},
		{SignalID: 4, Time: 1, Raw: []byte("1111")},
		{SignalID: 4, Time: 3, Raw: []byte("1111")},
	}}

	h, err := hierarchy.Build(desc)
	require.NoError(t, err)
	l, err := New()
	require.NoError(t, err)

	table, slots, _, err := l.scan(context.Background(), h, src)
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	s := &slots[0]
	require.Equal(t, 3, s.count)
	require.Zero(t, s.retained())

	var mse *errs.MalformedSignalError
	require.ErrorAs(t, s.fail, &mse)
	require.Equal(t, uint64(4), mse.SignalID)
	require.Equal(t, 2, mse.Index)

	t.Run("abort names the change", func(t *testing.T) {
		_, err := load(t, src)
		var le *errs.LoadError
		require.ErrorAs(t, err, &le)
		require.Equal(t, PhaseEncode, le.Phase)
		require.ErrorAs(t, err, &mse)
		require.Equal(t, 2, mse.Index)
	})

	t.Run("isolate degrades the signal", func(t *testing.T) {
		out, err := load(t, src, WithFailurePolicy(format.FailIsolate))
		require.NoError(t, err)
		require.True(t, out.Signals[0].Degraded())
		require.ErrorAs(t, out.Signals[0].Err(), &mse)
		require.Equal(t, 2, mse.Index)
	})
}

func TestLoad_RealAndStringSignals(t *testing.T) {
	src := &SliceSource{
		Desc: hierarchy.Description{Items: []hierarchy.Item{
			hierarchy.Var("temp", "real", 1, 0, format.DomainReal),
			hierarchy.Var("state", "string", 2, 0, format.DomainString),
		}},
		Changes: []Event{
			{SignalID: 1, Time: 0, Raw: []byte("1.5")},
			{SignalID: 2, Time: 0, Raw: []byte("IDLE")},
			{SignalID: 2, Time: 4, Raw: []byte("")},
			{SignalID: 1, Time: 4, Raw: []byte("-2.25")},
			{SignalID: 2, Time: 9, Raw: []byte("A much longer state name than one byte of length")},
		},
	}

	out, err := load(t, src)
	require.NoError(t, err)

	var reals []float64
	for c, err := range out.Signals[0].All() {
		require.NoError(t, err)
		f, ok := c.Value.Float64()
		require.True(t, ok)
		reals = append(reals, f)
	}
	require.Equal(t, []float64{1.5, -2.25}, reals)

	var states []string
	for c, err := range out.Signals[1].All() {
		require.NoError(t, err)
		states = append(states, c.Value.String())
	}
	require.Equal(t, []string{"IDLE", "", "A much longer state name than one byte of length"}, states)
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithWorkers(0))
	require.ErrorIs(t, err, errs.ErrInvalidOption)

	_, err = New(WithFailurePolicy(format.FailurePolicy(9)))
	require.ErrorIs(t, err, errs.ErrInvalidOption)

	_, err = New(WithEncoderOptions(signal.WithMaxBlockBytes(0)))
	require.ErrorIs(t, err, errs.ErrInvalidOption)
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	_, err := load(t, scenarioSource())
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("load done").Len())
	require.NotNil(t, Logger())
}
