// Package encoding provides the column codecs used inside signal blocks.
//
// A raw block is columnar: the time column holds uvarint deltas between
// consecutive time indices (TimeIndexEncoder), and the value column holds the
// packed values (ValueEncoder), either fixed size for narrow bit vectors or as
// uvarint-length-prefixed runs for wide vectors, strings and reals.
//
// Bit vectors are packed with PackSymbols at 1, 2 or 4 bits per position for
// two-state, four-state and nine-state logic respectively.
//
// Decoders are stateless values; encoders draw their buffers from the shared
// block buffer pool and must be released with Finish.
package encoding
