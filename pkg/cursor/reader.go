package cursor

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Reader is a forward-only decoder over an in-memory buffer. Every read
// advances the position by exactly the bytes it consumed or fails with an
// OutOfBounds error carrying the offset of the failed read.
type Reader struct {
	buf   []byte
	off   int
	order ByteOrder
}

// NewReader wraps buf for little-endian reading.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf, order: binary.LittleEndian}
}

// SetByteOrder switches the order used by all subsequent multi-byte reads.
func (r *Reader) SetByteOrder(order ByteOrder) { r.order = order }

// ByteOrder returns the current byte order.
func (r *Reader) ByteOrder() ByteOrder { return r.order }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

// Len returns the size of the underlying buffer.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) need(n int) error {
	if n < 0 || r.off+n > len(r.buf) {
		return nif.Errorf(nif.OutOfBounds, r.off, "need %d bytes, %d remain", n, r.Remaining())
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) peek(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	return r.buf[r.off : r.off+n], nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadBool reads a boolean stored in width bytes (1 or 4). Any non-zero
// value is true.
func (r *Reader) ReadBool(width int) (bool, error) {
	if width == 4 {
		v, err := r.ReadU32()
		return v != 0, err
	}
	v, err := r.ReadU8()
	return v != 0, err
}

// ReadBytes returns the next n bytes. The slice aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadFixedString reads an n-byte character buffer verbatim.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadSizedString reads a uint32 length followed by that many bytes.
func (r *Reader) ReadSizedString() (string, error) {
	start := r.off
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if int64(n) > int64(r.Remaining()) {
		r.off = start
		return "", nif.Errorf(nif.OutOfBounds, start, "string length %d exceeds %d remaining bytes", n, r.Remaining()-4)
	}
	return r.ReadFixedString(int(n))
}

// ReadShortString reads a uint8 length followed by that many bytes.
func (r *Reader) ReadShortString() (string, error) {
	n, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	return r.ReadFixedString(int(n))
}

// ReadLine reads up to and including the next '\n' and returns the text
// without it. At most limit bytes are scanned.
func (r *Reader) ReadLine(limit int) (string, error) {
	window := r.buf[r.off:]
	if len(window) > limit {
		window = window[:limit]
	}
	i := bytes.IndexByte(window, '\n')
	if i < 0 {
		return "", nif.Errorf(nif.OutOfBounds, r.off, "no line terminator within %d bytes", len(window))
	}
	line := string(window[:i])
	r.off += i + 1
	return line, nil
}

func (r *Reader) PeekU8() (uint8, error) {
	b, err := r.peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) PeekU32() (uint32, error) {
	b, err := r.peek(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// PeekBytes returns the next n bytes without advancing.
func (r *Reader) PeekBytes(n int) ([]byte, error) {
	return r.peek(n)
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}
