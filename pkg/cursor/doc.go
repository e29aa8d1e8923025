// Package cursor provides the primitive reader and writer the NIF codec is
// built on.
//
// A Reader walks a complete in-memory buffer forward; a Writer appends to a
// growable one. Neither performs I/O. Multi-byte values use the cursor's
// byte order, which is little-endian unless changed with SetByteOrder:
//
//	r := cursor.NewReader(data)
//	n, err := r.ReadU32()
//	if err != nil {
//	    return err // *nif.Error with Kind OutOfBounds and the failing offset
//	}
//
// Reads never return partial values. A failed read leaves the position
// where the read started.
package cursor

import "encoding/binary"

// ByteOrder is satisfied by binary.LittleEndian and binary.BigEndian.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Byte orders, re-exported so callers need not import encoding/binary.
var (
	LittleEndian ByteOrder = binary.LittleEndian
	BigEndian    ByteOrder = binary.BigEndian
)
