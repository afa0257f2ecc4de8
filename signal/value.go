package signal

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/wavemem/encoding"
	"github.com/arloliu/wavemem/endian"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
)

// Symbol codes of the logic domains. Two-state uses the first two, four-state
// the first four.
const (
	Sym0     byte = 0
	Sym1     byte = 1
	SymX     byte = 2
	SymZ     byte = 3
	SymH     byte = 4
	SymU     byte = 5
	SymW     byte = 6
	SymL     byte = 7
	SymDash  byte = 8
	numNine       = 9
	realSize      = 8
)

const symbolChars = "01xzhuwl-"

var engine = endian.GetLittleEndianEngine()

// symbolOf maps an ASCII character to its symbol code, or 0xff when illegal.
var symbolOf = func() [256]byte {
	var lut [256]byte
	for i := range lut {
		lut[i] = 0xff
	}
	for code, c := range symbolChars {
		lut[c] = byte(code)
		lut[strings.ToUpper(string(c))[0]] = byte(code)
	}

	return lut
}()

// Value is one value of a signal in its canonical packed form.
//
// Bit vectors hold one symbol per position at the domain's density, position
// 0 being the most significant. Reals hold 8 little-endian IEEE-754 bytes and
// strings hold their raw bytes.
//
// A Value returned by a query owns its bytes.
type Value struct {
	domain format.Domain
	width  int
	data   []byte
}

// ParseValue converts a front-end raw value into a Value.
//
// Bit-vector domains take one ASCII character per position, most significant
// first: "01" for two-state, "01xz" for four-state and "01xzhuwl-" for
// nine-state, case-insensitive. Reals take decimal text, strings any bytes.
//
// Returns ErrMalformedSignal when the number of positions differs from width
// or a character is illegal for the domain.
func ParseValue(domain format.Domain, width int, raw []byte) (Value, error) {
	data, reason := appendCanonical(nil, domain, width, raw)
	if reason != "" {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrMalformedSignal, reason)
	}

	return Value{domain: domain, width: width, data: data}, nil
}

// Sentinel returns the value a signal holds before its first change:
// all zeros for two-state, all x for four- and nine-state, 0.0 for reals and
// the empty string.
func Sentinel(domain format.Domain, width int) Value {
	v := Value{domain: domain, width: width}
	switch domain {
	case format.DomainTwoState:
		v.data = make([]byte, encoding.PackedSize(width, 1))
	case format.DomainFourState, format.DomainNineState:
		bits := domain.BitsPerPosition()
		syms := bytes.Repeat([]byte{SymX}, width)
		v.data = encoding.PackSymbols(nil, syms, bits)
	case format.DomainReal:
		v.data = make([]byte, realSize)
	case format.DomainString:
		v.data = []byte{}
	}

	return v
}

// FromUint64 returns a two-state value of the given width holding the low
// width bits of u. width must be in [1, 64].
func FromUint64(width int, u uint64) Value {
	var buf [8]byte
	engine.PutUint64(buf[:], u)
	size := encoding.PackedSize(width, 1)
	data := append([]byte(nil), buf[:size]...)
	if rem := width % 8; rem != 0 {
		data[size-1] &= byte(1<<rem) - 1
	}

	return Value{domain: format.DomainTwoState, width: width, data: data}
}

// FromFloat64 returns a real value.
func FromFloat64(f float64) Value {
	return Value{domain: format.DomainReal, data: engine.AppendUint64(nil, math.Float64bits(f))}
}

// FromString returns a string value.
func FromString(s string) Value {
	return Value{domain: format.DomainString, data: []byte(s)}
}

// Domain returns the value domain.
func (v Value) Domain() format.Domain {
	return v.domain
}

// Width returns the number of bit positions, 0 for reals and strings.
func (v Value) Width() int {
	return v.width
}

// Bytes returns the canonical packed bytes. The slice must not be modified.
func (v Value) Bytes() []byte {
	return v.data
}

// Symbol returns the symbol code at position pos, 0 being the most significant.
func (v Value) Symbol(pos int) byte {
	return encoding.SymbolAt(v.data, v.width, v.domain.BitsPerPosition(), pos)
}

// IsKnown reports whether every position of a bit vector is 0 or 1.
// Reals and strings are always known.
func (v Value) IsKnown() bool {
	if !v.domain.IsBitVector() || v.domain == format.DomainTwoState {
		return true
	}

	return encoding.MaxSymbol(v.data, v.width, v.domain.BitsPerPosition()) <= Sym1
}

// Uint64 returns the numeric value of a known bit vector of at most 64 positions.
func (v Value) Uint64() (uint64, bool) {
	if !v.domain.IsBitVector() || v.width > 64 {
		return 0, false
	}

	if v.domain == format.DomainTwoState {
		var buf [8]byte
		copy(buf[:], v.data)
		return engine.Uint64(buf[:]), true
	}

	var u uint64
	bits := v.domain.BitsPerPosition()
	for pos := range v.width {
		s := encoding.SymbolAt(v.data, v.width, bits, pos)
		if s > Sym1 {
			return 0, false
		}
		u = u<<1 | uint64(s)
	}

	return u, true
}

// Float64 returns the value of a real signal.
func (v Value) Float64() (float64, bool) {
	if v.domain != format.DomainReal || len(v.data) != realSize {
		return 0, false
	}

	return math.Float64frombits(engine.Uint64(v.data)), true
}

// Equal reports whether v and o are the same value of the same domain and width.
func (v Value) Equal(o Value) bool {
	return v.domain == o.domain && v.width == o.width && bytes.Equal(v.data, o.data)
}

// String renders the value the way it appears in a trace: one character per
// position for bit vectors, decimal text for reals, the raw text for strings.
func (v Value) String() string {
	switch v.domain {
	case format.DomainReal:
		f, _ := v.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case format.DomainString:
		return string(v.data)
	case format.DomainTwoState, format.DomainFourState, format.DomainNineState:
		var sb strings.Builder
		sb.Grow(v.width)
		bits := v.domain.BitsPerPosition()
		for pos := range v.width {
			sb.WriteByte(symbolChars[encoding.SymbolAt(v.data, v.width, bits, pos)])
		}

		return sb.String()
	default:
		return ""
	}
}

// appendCanonical appends the canonical packed form of raw to dst.
// A non-empty reason reports why raw does not fit the declaration.
func appendCanonical(dst []byte, domain format.Domain, width int, raw []byte) ([]byte, string) {
	switch domain {
	case format.DomainTwoState, format.DomainFourState, format.DomainNineState:
		if len(raw) != width {
			return dst, fmt.Sprintf("value has %d bits, signal is %d bits wide", len(raw), width)
		}

		bits := domain.BitsPerPosition()
		limit := byte(1 << bits)
		if domain == format.DomainNineState {
			limit = numNine
		}

		start := len(dst)
		size := encoding.PackedSize(width, bits)
		for range size {
			dst = append(dst, 0)
		}
		out := dst[start:]
		for i, c := range raw {
			s := symbolOf[c]
			if s >= limit {
				return dst[:start], fmt.Sprintf("illegal %s character %q at bit %d", domain, c, i)
			}
			bitPos := (width - 1 - i) * bits
			out[bitPos>>3] |= s << (bitPos & 7)
		}

		return dst, ""

	case format.DomainReal:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return dst, fmt.Sprintf("invalid real value %q", raw)
		}

		return engine.AppendUint64(dst, math.Float64bits(f)), ""

	case format.DomainString:
		return append(dst, raw...), ""

	default:
		return dst, fmt.Sprintf("unknown domain %d", domain)
	}
}
