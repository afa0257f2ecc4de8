package signal

import (
	"github.com/arloliu/wavemem/encoding"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/hierarchy"
)

// fixedValueSize returns the fixed value column width for a declaration, or 0
// when values are stored as length-prefixed runs.
func fixedValueSize(domain format.Domain, width int) int {
	if !domain.IsBitVector() {
		return 0
	}

	size := encoding.PackedSize(width, domain.BitsPerPosition())
	if size > encoding.MaxFixedValueSize {
		return 0
	}

	return size
}

// CanonicalSize returns the size of every canonical value of a declaration,
// or 0 for strings, whose canonical form is the raw bytes.
func CanonicalSize(domain format.Domain, width int) int {
	switch {
	case domain.IsBitVector():
		return encoding.PackedSize(width, domain.BitsPerPosition())
	case domain == format.DomainReal:
		return realSize
	default:
		return 0
	}
}

// Canonicalize appends the canonical packed form of raw to dst.
//
// Returns a MalformedSignalError naming the signal and change n when raw does
// not match the declaration in info.
func Canonicalize(dst []byte, info *hierarchy.SignalInfo, n int, raw []byte) ([]byte, error) {
	out, reason := appendCanonical(dst, info.Domain, info.Width, raw)
	if reason != "" {
		return dst, errs.NewMalformedSignal(uint64(info.ID), n, "%s", reason)
	}

	return out, nil
}

// appendStored appends the stored form of a canonical value to dst.
//
// Wide four- and nine-state values without x, z or other non-binary symbols
// are narrowed to two-state density; the run length tells the reader which
// density was used.
func appendStored(dst []byte, domain format.Domain, width int, canonical []byte) []byte {
	bits := domain.BitsPerPosition()
	if bits > 1 && fixedValueSize(domain, width) == 0 &&
		encoding.MaxSymbol(canonical, width, bits) <= Sym1 {
		return encoding.Repack(dst, canonical, width, bits, 1)
	}

	return append(dst, canonical...)
}

// appendCanonicalFromStored reverses appendStored.
// ok is false when the stored run has a length no writer produces.
func appendCanonicalFromStored(dst []byte, domain format.Domain, width int, stored []byte) ([]byte, bool) {
	switch domain {
	case format.DomainTwoState, format.DomainFourState, format.DomainNineState:
		bits := domain.BitsPerPosition()
		switch len(stored) {
		case encoding.PackedSize(width, bits):
			return append(dst, stored...), true
		case encoding.PackedSize(width, 1):
			return encoding.Repack(dst, stored, width, 1, bits), true
		default:
			return dst, false
		}
	case format.DomainReal:
		if len(stored) != realSize {
			return dst, false
		}

		return append(dst, stored...), true
	case format.DomainString:
		return append(dst, stored...), true
	default:
		return dst, false
	}
}

// validStoredLen reports whether n is a stored value length appendStored can produce.
func validStoredLen(domain format.Domain, width int, n int) bool {
	switch domain {
	case format.DomainTwoState, format.DomainFourState, format.DomainNineState:
		return n == encoding.PackedSize(width, domain.BitsPerPosition()) || n == encoding.PackedSize(width, 1)
	case format.DomainReal:
		return n == realSize
	case format.DomainString:
		return true
	default:
		return false
	}
}
