// Package section defines the fixed binary structures of a signal's block index.
//
// A signal is stored as a list of independently compressed blocks. Each block
// is described by a BlockIndexEntry carrying the time index range it covers,
// its change count, its compressed and raw sizes, the codec and a checksum of
// the raw payload. Entries have a fixed 32-byte binary form:
//
//	┌───────────────┬───────────────┬───────────┬────────────────┐
//	│ FirstIndex u32│ LastIndex u32 │ Count u32 │ Compressed u32 │
//	├───────────────┼───────┬───────┴───────────┴────────────────┤
//	│ RawLen u32    │ codec │ reserved │ Checksum u64             │
//	└───────────────┴───────┴──────────┴──────────────────────────┘
//
// Consecutive entries of one signal never overlap: every block starts after the
// last change of its predecessor, which lets lookups binary search on
// FirstIndex alone.
package section
