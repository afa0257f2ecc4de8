// Package loader builds the in-memory waveform from a front-end's hierarchy
// description and event stream.
//
// Loading has two phases separated by a single barrier:
//
//  1. Scan (sequential): one pass over the events builds the hierarchy and the
//     shared time table and buckets every value by signal, already packed
//     and with delta-coded times. The time table must be complete before any
//     signal can be delta-encoded against it, so this phase cannot be split.
//  2. Encode (parallel): a fixed pool of workers pulls signals from a shared
//     cursor and encodes each one into its own output slot.
//
// Failure handling is configurable: FailAbort stops the load on the first
// malformed signal, FailIsolate swaps the signal for a degraded placeholder
// and carries on. Cancellation (Loader.Abort or the context) is observed
// between signals and between blocks. A failed load never yields a partial
// result.
package loader
