// Package endian provides byte order engines for fixed-width value encoding.
//
// An EndianEngine combines binary.ByteOrder and binary.AppendByteOrder so that
// encoders can append fixed-width fields without an intermediate buffer.
// Block payloads and real values always use little-endian; block index entries
// can be rendered in either order.
package endian

import "encoding/binary"

// EndianEngine reads and appends fixed-width integers in one byte order.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine used by block payloads.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
