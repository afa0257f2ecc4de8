package signal

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/arloliu/wavemem/compress"
	"github.com/arloliu/wavemem/endian"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/internal/hash"
	"github.com/arloliu/wavemem/section"
	"github.com/arloliu/wavemem/timetable"
)

// Change is one recorded value change of a signal.
type Change struct {
	Index timetable.Index
	Value Value
}

// Block is one independently compressed group of changes.
type Block struct {
	section.BlockIndexEntry

	// Payload is the compressed raw block.
	Payload []byte
}

// BlockRef identifies a block of a signal by position.
type BlockRef int

// Signal is the frozen, compressed change history of one signal.
//
// A Signal is immutable and safe for concurrent use. A degraded Signal stands
// in for a signal whose input was malformed; its data accessors return the
// recorded error.
type Signal struct {
	id     hierarchy.SignalID
	ref    hierarchy.Ref
	domain format.Domain
	width  int

	blocks []Block
	count  int
	codec  compress.Codec
	stats  compress.CompressionStats

	err error
}

// NewDegraded returns a placeholder for a signal that failed to encode.
// Queries on it return err.
func NewDegraded(info *hierarchy.SignalInfo, err error) *Signal {
	return &Signal{
		id:     info.ID,
		ref:    info.Ref,
		domain: info.Domain,
		width:  info.Width,
		err:    err,
	}
}

// ID returns the front-end signal id.
func (s *Signal) ID() hierarchy.SignalID {
	return s.id
}

// Ref returns the dense slot of the signal.
func (s *Signal) Ref() hierarchy.Ref {
	return s.ref
}

// Domain returns the value domain.
func (s *Signal) Domain() format.Domain {
	return s.domain
}

// Width returns the declared bit width, 0 for reals and strings.
func (s *Signal) Width() int {
	return s.width
}

// Err returns the encoding error of a degraded signal, nil otherwise.
func (s *Signal) Err() error {
	return s.err
}

// Degraded reports whether the signal is a placeholder for malformed input.
func (s *Signal) Degraded() bool {
	return s.err != nil && !errors.Is(s.err, errs.ErrClosed)
}

// Len returns the number of stored changes.
func (s *Signal) Len() int {
	return s.count
}

// NumBlocks returns the number of blocks.
func (s *Signal) NumBlocks() int {
	return len(s.blocks)
}

// Block returns the index entry of a block.
func (s *Signal) Block(ref BlockRef) (section.BlockIndexEntry, bool) {
	if ref < 0 || int(ref) >= len(s.blocks) {
		return section.BlockIndexEntry{}, false
	}

	return s.blocks[ref].BlockIndexEntry, true
}

// Sentinel returns the value of the signal before its first change.
func (s *Signal) Sentinel() Value {
	return Sentinel(s.domain, s.width)
}

// Stats returns the compression statistics of the signal's blocks.
func (s *Signal) Stats() compress.CompressionStats {
	return s.stats
}

// Size returns the memory held by compressed payloads and block metadata in bytes.
func (s *Signal) Size() int {
	size := len(s.blocks) * section.BlockIndexEntrySize
	for i := range s.blocks {
		size += len(s.blocks[i].Payload)
	}

	return size
}

// FindBlock returns the block holding the latest change at or before idx.
//
// ok is false when the signal has no change at or before idx.
// Runs in O(log B) for B blocks.
func (s *Signal) FindBlock(idx timetable.Index) (BlockRef, bool) {
	// first block starting after idx
	i := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].FirstIndex > idx })
	if i == 0 {
		return 0, false
	}

	return BlockRef(i - 1), true
}

// Decompress returns the raw bytes of a block.
//
// The operation is pure: repeated calls return identical bytes. The returned
// slice must not be modified. Returns ErrCorrupt when the payload does not
// decompress to the recorded length and checksum.
func (s *Signal) Decompress(ref BlockRef) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if ref < 0 || int(ref) >= len(s.blocks) {
		return nil, fmt.Errorf("%w: signal %d has no block %d", errs.ErrInvalidTime, s.id, ref)
	}

	b := &s.blocks[ref]
	raw, err := compress.Decompress(s.codec, b.Payload, int(b.RawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: signal %d block %d: %w", errs.ErrCorrupt, s.id, ref, err)
	}
	if len(raw) != int(b.RawLen) {
		return nil, fmt.Errorf("%w: signal %d block %d: decompressed %d bytes, want %d",
			errs.ErrCorrupt, s.id, ref, len(raw), b.RawLen)
	}
	if hash.Checksum(raw) != b.Checksum {
		return nil, fmt.Errorf("%w: signal %d block %d: checksum mismatch", errs.ErrCorrupt, s.id, ref)
	}

	return raw, nil
}

// DecodeBlock decompresses and decodes a block for in-block searches.
func (s *Signal) DecodeBlock(ref BlockRef) (*DecodedBlock, error) {
	raw, err := s.Decompress(ref)
	if err != nil {
		return nil, err
	}

	return DecodeBlock(raw, s.blocks[ref].BlockIndexEntry, s.domain, s.width)
}

// All yields every stored change in order, decoding one block at a time.
func (s *Signal) All() iter.Seq2[Change, error] {
	return func(yield func(Change, error) bool) {
		if s.err != nil {
			yield(Change{}, s.err)
			return
		}

		for ref := range s.blocks {
			blk, err := s.DecodeBlock(BlockRef(ref))
			if err != nil {
				yield(Change{}, err)
				return
			}
			for i := range blk.Len() {
				if !yield(Change{Index: blk.Index(i), Value: blk.At(i)}, nil) {
					return
				}
			}
		}
	}
}

// IndexBytes returns the binary block index of the signal.
func (s *Signal) IndexBytes(engine endian.EndianEngine) []byte {
	entries := make([]section.BlockIndexEntry, len(s.blocks))
	for i := range s.blocks {
		entries[i] = s.blocks[i].BlockIndexEntry
	}

	return section.EncodeIndex(make([]byte, 0, len(entries)*section.BlockIndexEntrySize), entries, engine)
}

// Payload returns the compressed payload of a block. The slice must not be modified.
func (s *Signal) Payload(ref BlockRef) []byte {
	if ref < 0 || int(ref) >= len(s.blocks) {
		return nil
	}

	return s.blocks[ref].Payload
}

// Release drops the encoded blocks. Data accessors return ErrClosed afterwards.
// Release must not run concurrently with readers of the signal.
func (s *Signal) Release() {
	s.blocks = nil
	s.count = 0
	if s.err == nil {
		s.err = errs.ErrClosed
	}
}
