package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackSymbols_TwoState(t *testing.T) {
	// "1010" read MSB first is 0b1010.
	packed := PackSymbols(nil, []byte{1, 0, 1, 0}, 1)
	require.Equal(t, []byte{0x0a}, packed)

	// 12 bits "100000000001" = 0x801, little-endian bytes.
	syms := make([]byte, 12)
	syms[0], syms[11] = 1, 1
	packed = PackSymbols(nil, syms, 1)
	require.Equal(t, []byte{0x01, 0x08}, packed)

	// 64-bit values read back as uint64.
	syms = make([]byte, 64)
	for i := range syms {
		syms[i] = byte(i & 1)
	}
	packed = PackSymbols(nil, syms, 1)
	require.Equal(t, uint64(0x5555555555555555), binary.LittleEndian.Uint64(packed))
}

func TestPackSymbols_RoundTrip(t *testing.T) {
	for _, bits := range []int{1, 2, 4} {
		maxSym := byte(1<<bits) - 1
		for _, width := range []int{1, 3, 7, 8, 9, 33, 130} {
			syms := make([]byte, width)
			for i := range syms {
				syms[i] = byte(i*7+3) & maxSym
			}

			packed := PackSymbols([]byte{0xee}, syms, bits)
			require.Equal(t, byte(0xee), packed[0], "prefix must be preserved")
			packed = packed[1:]
			require.Len(t, packed, PackedSize(width, bits))
			for pos := range width {
				require.Equal(t, syms[pos], SymbolAt(packed, width, bits, pos))
			}
		}
	}
}

func TestRepack(t *testing.T) {
	syms := []byte{1, 0, 0, 1, 1, 1, 0, 0, 1, 0}
	four := PackSymbols(nil, syms, 2)
	require.Equal(t, byte(1), MaxSymbol(four, len(syms), 2))

	two := Repack(nil, four, len(syms), 2, 1)
	require.Equal(t, PackSymbols(nil, syms, 1), two)

	back := Repack(nil, two, len(syms), 1, 2)
	require.Equal(t, four, back)
}

func TestMaxSymbol(t *testing.T) {
	packed := PackSymbols(nil, []byte{0, 3, 1}, 2)
	require.Equal(t, byte(3), MaxSymbol(packed, 3, 2))
}
