// Package wavemem provides an in-memory engine for digital waveform traces.
//
// A trace is a hierarchy of scopes and variables plus a stream of timestamped
// value changes. wavemem ingests the stream once, interns every timestamp into
// a global time table and stores each signal's history as independently
// compressed blocks, so that point and range queries only decompress the
// blocks they touch.
//
// # Core Features
//
//   - Two-phase parallel loading: a sequential scan, then per-signal encoding
//     on a fixed worker pool with deterministic output
//   - Two-, four- and nine-state bit vectors, reals and strings
//   - Dense packing: narrow vectors stored fixed size, unknown-free four-state
//     values stored at two-state density
//   - Pluggable block compression (S2, Zstd, LZ4, None) with xxHash64 checksums
//   - Lazy decompression through a bounded, shared LRU of decoded blocks
//   - Failure isolation: a malformed signal can be degraded instead of
//     aborting the whole load
//
// # Basic Usage
//
// Loading a trace from an in-memory event stream:
//
//	src := &loader.SliceSource{
//	    Desc: hierarchy.Description{Items: []hierarchy.Item{
//	        hierarchy.Scope("top", "module",
//	            hierarchy.Var("clk", "wire", 1, 1, format.DomainTwoState),
//	            hierarchy.Var("data", "wire", 2, 8, format.DomainFourState),
//	        ),
//	    }},
//	    Changes: events,
//	}
//
//	wf, err := wavemem.Load(ctx, src,
//	    wavemem.WithCacheSize(4096),
//	    wavemem.WithLoaderOptions(
//	        loader.WithWorkers(8),
//	        loader.WithFailurePolicy(format.FailIsolate),
//	    ),
//	)
//	if err != nil {
//	    return err
//	}
//	defer wf.Close()
//
// Querying:
//
//	v, _ := wf.ValueAt(2, 1500)
//	fmt.Println(v) // e.g. "0101xxzz"
//
//	for c, err := range wf.ChangesIn(1, 0, 10_000) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("t=%d clk=%s\n", c.Time, c.Value)
//	}
//
// # Package Structure
//
// This package is the query surface. The loader package runs ingestion, the
// signal package holds the block encoder and decoder, and the timetable and
// hierarchy packages hold the shared trace structure. For fine-grained control,
// load with the loader package directly and wrap the result with New.
package wavemem
