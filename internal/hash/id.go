package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Checksum computes the xxHash64 of a raw block payload.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Digest accumulates an xxHash64 over a sequence of byte runs and integers.
type Digest struct {
	d   *xxhash.Digest
	tmp [8]byte
}

// NewDigest creates an empty Digest.
func NewDigest() *Digest {
	return &Digest{d: xxhash.New()}
}

// Write adds data to the digest.
func (d *Digest) Write(data []byte) {
	_, _ = d.d.Write(data)
}

// WriteUint64 adds v to the digest in little-endian order.
func (d *Digest) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(d.tmp[:], v)
	_, _ = d.d.Write(d.tmp[:])
}

// WriteBytes adds len(data) followed by data, so that consecutive variable
// length fields cannot shift into each other.
func (d *Digest) WriteBytes(data []byte) {
	d.WriteUint64(uint64(len(data)))
	d.Write(data)
}

// WriteString is WriteBytes for a string.
func (d *Digest) WriteString(s string) {
	d.WriteUint64(uint64(len(s)))
	_, _ = d.d.WriteString(s)
}

// Sum64 returns the current hash.
func (d *Digest) Sum64() uint64 {
	return d.d.Sum64()
}
