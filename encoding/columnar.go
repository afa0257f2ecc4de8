package encoding

// ColumnarEncoder appends values of one column of a block.
type ColumnarEncoder[T any] interface {
	// Bytes returns the encoded byte slice.
	// The returned slice is valid until the next call to Write or Reset.
	// The caller should not modify the returned slice.
	Bytes() []byte

	// Len returns the number of encoded values.
	Len() int

	// Size returns the size in bytes of the encoded values.
	Size() int

	// Finish returns buffer resources to the pool.
	//
	// After calling Finish, the encoder is no longer usable:
	//
	//	enc := NewTimeIndexEncoder()
	//	defer enc.Finish()
	Finish()

	// Write appends a single value.
	Write(data T)
}
