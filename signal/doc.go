// Package signal implements the per-signal compressed store.
//
// An Encoder consumes one signal's changes, each a time index into the shared
// time table plus a value, and groups them into blocks. Within a block the time
// indices are stored as varint deltas and the values in a column whose layout
// depends on the domain:
//
//   - narrow bit vectors (at most 8 packed bytes) are fixed size, packed at 1,
//     2 or 4 bits per position for two-, four- and nine-state logic
//   - wide vectors, reals and strings are length-prefixed byte runs; wide
//     four- and nine-state values without unknown bits are stored at
//     two-state density
//
// Every block is compressed on its own and described by a
// section.BlockIndexEntry, so a lookup only decompresses the one block that
// covers the requested time index.
//
// Basic usage:
//
//	cfg, _ := signal.NewEncoderConfig(signal.WithCompression(format.CompressionZstd))
//	enc := signal.NewEncoder(info, cfg)
//	_ = enc.Append(0, []byte("0101"))
//	_ = enc.Append(3, []byte("01xz"))
//	sig, err := enc.Finish()
//
// A finished Signal is immutable: Decompress is a pure function of the stored
// payload, so callers are free to cache decoded blocks however they like.
package signal
