package encoding

// Bit-vector packing.
//
// A vector of width positions is packed as one little-endian number in which
// position 0 (the most significant, leftmost character of the trace text)
// occupies the highest symbol slot. A two-state vector of up to 64 bits can
// therefore be read back directly as a little-endian uint64.
//
// bits must be 1, 2 or 4 so that no symbol straddles a byte boundary.

// PackedSize returns the number of bytes needed for width symbols of the given bit size.
func PackedSize(width, bits int) int {
	return (width*bits + 7) / 8
}

// PackSymbols appends the packed form of syms to dst.
// Each symbol must be smaller than 1<<bits.
func PackSymbols(dst []byte, syms []byte, bits int) []byte {
	size := PackedSize(len(syms), bits)
	start := len(dst)
	for range size {
		dst = append(dst, 0)
	}
	out := dst[start:]

	width := len(syms)
	for i, s := range syms {
		bitPos := (width - 1 - i) * bits
		out[bitPos>>3] |= s << (bitPos & 7)
	}

	return dst
}

// SymbolAt returns the symbol at position pos (0 = most significant).
func SymbolAt(packed []byte, width, bits, pos int) byte {
	bitPos := (width - 1 - pos) * bits
	mask := byte(1<<bits) - 1

	return (packed[bitPos>>3] >> (bitPos & 7)) & mask
}

// MaxSymbol returns the largest symbol in packed.
func MaxSymbol(packed []byte, width, bits int) byte {
	var maxSym byte
	for pos := range width {
		if s := SymbolAt(packed, width, bits, pos); s > maxSym {
			maxSym = s
		}
	}

	return maxSym
}

// Repack converts a packed vector from one symbol size to another.
// Every symbol must fit the target size.
func Repack(dst []byte, packed []byte, width, fromBits, toBits int) []byte {
	size := PackedSize(width, toBits)
	start := len(dst)
	for range size {
		dst = append(dst, 0)
	}
	out := dst[start:]

	for pos := range width {
		s := SymbolAt(packed, width, fromBits, pos)
		bitPos := (width - 1 - pos) * toBits
		out[bitPos>>3] |= s << (bitPos & 7)
	}

	return dst
}
