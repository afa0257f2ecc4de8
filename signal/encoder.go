package signal

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/wavemem/compress"
	"github.com/arloliu/wavemem/encoding"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/internal/hash"
	"github.com/arloliu/wavemem/internal/pool"
	"github.com/arloliu/wavemem/section"
	"github.com/arloliu/wavemem/timetable"
)

// Encoder turns one signal's ordered change stream into compressed blocks.
//
// Changes must arrive with non-decreasing time indices. Several changes at the
// same index collapse to the last one, so stored indices strictly increase.
//
// Block grouping: a block closes before a change that would exceed the
// configured entry count or raw byte size. A change is never split; one that
// is larger than the byte limit gets a block of its own.
//
// Note: The Encoder is NOT thread-safe and NOT reusable. After Finish, a new
// encoder must be created.
type Encoder struct {
	cfg    *EncoderConfig
	id     hierarchy.SignalID
	ref    hierarchy.Ref
	domain format.Domain
	width  int

	tsEncoder  *encoding.TimeIndexEncoder
	valEncoder *encoding.ValueEncoder
	raw        *pool.ByteBuffer

	blockFirst timetable.Index
	blockLast  timetable.Index

	// pending holds the newest change until a later index proves it final.
	hasPending bool
	pendingIdx timetable.Index
	pending    []byte
	scratch    []byte

	inputs int // changes received, for error reporting
	stored int // changes written to blocks
	blocks []Block
	stats  compress.CompressionStats

	err      error
	finished bool
}

// NewEncoder creates an encoder for the signal described by info.
func NewEncoder(info *hierarchy.SignalInfo, cfg *EncoderConfig) *Encoder {
	return &Encoder{
		cfg:        cfg,
		id:         info.ID,
		ref:        info.Ref,
		domain:     info.Domain,
		width:      info.Width,
		tsEncoder:  encoding.NewTimeIndexEncoder(),
		valEncoder: encoding.NewValueEncoder(fixedValueSize(info.Domain, info.Width)),
		raw:        pool.GetBlockBuffer(),
		stats:      compress.CompressionStats{Algorithm: cfg.compression},
	}
}

// Append adds a change given in the front-end's raw form.
//
// Returns a MalformedSignalError naming the signal and the change number when
// raw does not match the declaration or idx goes backwards. Errors are sticky:
// once Append fails, every later call returns the same error.
func (e *Encoder) Append(idx timetable.Index, raw []byte) error {
	if err := e.check(); err != nil {
		return err
	}

	n := e.inputs
	e.inputs++

	canonical, reason := appendCanonical(e.scratch[:0], e.domain, e.width, raw)
	e.scratch = canonical
	if reason != "" {
		e.err = errs.NewMalformedSignal(uint64(e.id), n, "%s", reason)
		return e.err
	}

	return e.push(n, idx, canonical)
}

// AppendCanonical adds a change already packed by Canonicalize.
// A packed value of the wrong size is reported as a malformed change.
func (e *Encoder) AppendCanonical(idx timetable.Index, packed []byte) error {
	if err := e.check(); err != nil {
		return err
	}

	n := e.inputs
	e.inputs++

	if size := CanonicalSize(e.domain, e.width); size > 0 && len(packed) != size {
		e.err = errs.NewMalformedSignal(uint64(e.id), n, "packed value has %d bytes, want %d", len(packed), size)
		return e.err
	}

	return e.push(n, idx, packed)
}

// AppendValue adds an already parsed change.
func (e *Encoder) AppendValue(idx timetable.Index, v Value) error {
	if err := e.check(); err != nil {
		return err
	}

	n := e.inputs
	e.inputs++

	if v.domain != e.domain || v.width != e.width {
		e.err = errs.NewMalformedSignal(uint64(e.id), n, "value is %s/%d, signal is %s/%d",
			v.domain, v.width, e.domain, e.width)
		return e.err
	}

	return e.push(n, idx, v.data)
}

func (e *Encoder) check() error {
	if e.finished {
		return errs.ErrEncoderFinished
	}

	return e.err
}

func (e *Encoder) push(n int, idx timetable.Index, canonical []byte) error {
	if e.hasPending {
		if idx < e.pendingIdx {
			e.err = errs.NewMalformedSignal(uint64(e.id), n, "time index %d precedes %d", idx, e.pendingIdx)
			return e.err
		}
		if idx > e.pendingIdx {
			if err := e.flushPending(); err != nil {
				e.err = err
				return err
			}
		}
	}

	e.pending = appendStored(e.pending[:0], e.domain, e.width, canonical)
	e.pendingIdx = idx
	e.hasPending = true

	return nil
}

// flushPending moves the pending change into the current block.
func (e *Encoder) flushPending() error {
	if !e.hasPending {
		return nil
	}
	e.hasPending = false

	if e.valEncoder.Len() > 0 {
		tsSize := e.tsEncoder.Size() + e.tsEncoder.DeltaSize(e.pendingIdx)
		rawSize := encoding.UvarintSize(uint64(tsSize)) + tsSize +
			e.valEncoder.Size() + e.valEncoder.EncodedSize(e.pending)
		if e.valEncoder.Len() >= e.cfg.maxBlockEntries || rawSize > e.cfg.maxBlockBytes {
			if err := e.closeBlock(); err != nil {
				return err
			}
		}
	}

	if e.valEncoder.Len() == 0 {
		e.tsEncoder.Reset(e.pendingIdx)
		e.valEncoder.Reset()
		e.blockFirst = e.pendingIdx
	}

	e.tsEncoder.Write(e.pendingIdx)
	e.valEncoder.Write(e.pending)
	e.blockLast = e.pendingIdx

	return nil
}

// closeBlock compresses the current block and records its index entry.
func (e *Encoder) closeBlock() error {
	count := e.valEncoder.Len()
	if count == 0 {
		return nil
	}

	if e.cfg.aborted() {
		return fmt.Errorf("%w: signal %d", errs.ErrIngestionAborted, e.id)
	}

	e.raw.Reset()
	e.raw.Grow(binary.MaxVarintLen32 + e.tsEncoder.Size() + e.valEncoder.Size())
	e.raw.AppendUvarint(uint64(e.tsEncoder.Size()))
	e.raw.MustWrite(e.tsEncoder.Bytes())
	e.raw.MustWrite(e.valEncoder.Bytes())
	raw := e.raw.Bytes()

	payload, err := e.cfg.codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress signal %d block %d: %w", e.id, len(e.blocks), err)
	}

	e.blocks = append(e.blocks, Block{
		BlockIndexEntry: section.BlockIndexEntry{
			FirstIndex:    e.blockFirst,
			LastIndex:     e.blockLast,
			Count:         uint32(count),        //nolint:gosec
			CompressedLen: uint32(len(payload)), //nolint:gosec
			RawLen:        uint32(len(raw)),     //nolint:gosec
			Codec:         e.cfg.compression,
			Checksum:      hash.Checksum(raw),
		},
		Payload: payload,
	})
	e.stats.Add(len(raw), len(payload))
	e.stored += count

	e.tsEncoder.Reset(0)
	e.valEncoder.Reset()

	return nil
}

// Len returns the number of changes received so far.
func (e *Encoder) Len() int {
	return e.inputs
}

// Finish flushes the last block and returns the frozen signal.
// The encoder releases its buffers and cannot be used afterwards.
func (e *Encoder) Finish() (*Signal, error) {
	if e.finished {
		return nil, errs.ErrEncoderFinished
	}
	defer e.release()

	if e.err != nil {
		return nil, e.err
	}
	if err := e.flushPending(); err != nil {
		return nil, err
	}
	if err := e.closeBlock(); err != nil {
		return nil, err
	}

	return &Signal{
		id:     e.id,
		ref:    e.ref,
		domain: e.domain,
		width:  e.width,
		blocks: e.blocks,
		count:  e.stored,
		codec:  e.cfg.codec,
		stats:  e.stats,
	}, nil
}

// Release returns the encoder's buffers without producing a signal.
// It is a no-op after Finish.
func (e *Encoder) Release() {
	if !e.finished {
		e.release()
	}
}

func (e *Encoder) release() {
	e.finished = true
	e.tsEncoder.Finish()
	e.valEncoder.Finish()
	pool.PutBlockBuffer(e.raw)
	e.raw = nil
	e.pending, e.scratch = nil, nil
}
