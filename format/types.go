package format

type (
	Domain          uint8
	CompressionType uint8
	FailurePolicy   uint8
)

const (
	DomainTwoState  Domain = 0x1 // DomainTwoState represents 0/1 bit vectors.
	DomainFourState Domain = 0x2 // DomainFourState represents 0/1/x/z bit vectors.
	DomainNineState Domain = 0x3 // DomainNineState represents VHDL std_logic vectors.
	DomainString    Domain = 0x4 // DomainString represents arbitrary byte strings.
	DomainReal      Domain = 0x5 // DomainReal represents IEEE-754 double values.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	FailAbort   FailurePolicy = 0x1 // FailAbort aborts the whole load on the first malformed signal.
	FailIsolate FailurePolicy = 0x2 // FailIsolate replaces a malformed signal with a degraded placeholder.
)

func (d Domain) String() string {
	switch d {
	case DomainTwoState:
		return "TwoState"
	case DomainFourState:
		return "FourState"
	case DomainNineState:
		return "NineState"
	case DomainString:
		return "String"
	case DomainReal:
		return "Real"
	default:
		return "Unknown"
	}
}

// IsBitVector reports whether values of the domain are per-bit vectors.
func (d Domain) IsBitVector() bool {
	return d == DomainTwoState || d == DomainFourState || d == DomainNineState
}

// BitsPerPosition returns the packed width of one bit position, or 0 for non-vector domains.
func (d Domain) BitsPerPosition() int {
	switch d {
	case DomainTwoState:
		return 1
	case DomainFourState:
		return 2
	case DomainNineState:
		return 4
	default:
		return 0
	}
}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	return d >= DomainTwoState && d <= DomainReal
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (p FailurePolicy) String() string {
	switch p {
	case FailAbort:
		return "Abort"
	case FailIsolate:
		return "Isolate"
	default:
		return "Unknown"
	}
}
