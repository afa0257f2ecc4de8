package section

import (
	"github.com/arloliu/wavemem/endian"
	"github.com/arloliu/wavemem/format"
)

// BlockIndexEntry describes one compressed block of a signal.
//
// Entries are kept in memory next to the compressed payloads. The fixed 32-byte
// binary form exists so that a signal's whole block index can be hashed or
// compared without touching the payloads.
//
// Layout (all fields in the engine's byte order):
//
//	[0:4]   FirstIndex
//	[4:8]   LastIndex
//	[8:12]  Count
//	[12:16] CompressedLen
//	[16:20] RawLen
//	[20]    Codec
//	[21:24] reserved, zero
//	[24:32] Checksum
type BlockIndexEntry struct {
	// FirstIndex is the time index of the first change in the block.
	FirstIndex uint32

	// LastIndex is the time index of the last change in the block.
	LastIndex uint32

	// Count is the number of changes in the block.
	Count uint32

	// CompressedLen is the size of the compressed payload.
	CompressedLen uint32

	// RawLen is the size of the payload after decompression.
	RawLen uint32

	// Codec is the compression algorithm of the payload.
	Codec format.CompressionType

	// Checksum is the xxHash64 of the raw payload.
	Checksum uint64
}

// Covers reports whether idx falls between the first and last change of the block.
func (e BlockIndexEntry) Covers(idx uint32) bool {
	return idx >= e.FirstIndex && idx <= e.LastIndex
}

// AppendTo appends the fixed BlockIndexEntrySize-byte binary form of the entry to dst.
func (e BlockIndexEntry) AppendTo(dst []byte, engine endian.EndianEngine) []byte {
	dst = engine.AppendUint32(dst, e.FirstIndex)
	dst = engine.AppendUint32(dst, e.LastIndex)
	dst = engine.AppendUint32(dst, e.Count)
	dst = engine.AppendUint32(dst, e.CompressedLen)
	dst = engine.AppendUint32(dst, e.RawLen)
	dst = append(dst, byte(e.Codec), 0, 0, 0)
	dst = engine.AppendUint64(dst, e.Checksum)

	return dst
}

// EncodeIndex appends the binary form of all entries to dst.
//
// Parameters:
//   - dst: Buffer to append to
//   - entries: Block index entries of one signal, in block order
//   - engine: Endian engine for byte order
//
// Returns:
//   - []byte: dst extended by len(entries)*BlockIndexEntrySize bytes
func EncodeIndex(dst []byte, entries []BlockIndexEntry, engine endian.EndianEngine) []byte {
	for i := range entries {
		dst = entries[i].AppendTo(dst, engine)
	}

	return dst
}
