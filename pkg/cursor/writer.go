package cursor

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Writer appends encoded primitives to a growable buffer.
type Writer struct {
	buf   []byte
	order ByteOrder
}

// NewWriter returns a little-endian writer with capacity hint size.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size), order: binary.LittleEndian}
}

// SetByteOrder switches the order used by all subsequent multi-byte writes.
func (w *Writer) SetByteOrder(order ByteOrder) { w.order = order }

// ByteOrder returns the current byte order.
func (w *Writer) ByteOrder() ByteOrder { return w.order }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteI8(v int8) { w.WriteU8(uint8(v)) }

func (w *Writer) WriteU16(v uint16) { w.buf = w.order.AppendUint16(w.buf, v) }

func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

func (w *Writer) WriteU32(v uint32) { w.buf = w.order.AppendUint32(w.buf, v) }

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU64(v uint64) { w.buf = w.order.AppendUint64(w.buf, v) }

func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }

func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

// WriteBool writes v as 0/1 in width bytes (1 or 4).
func (w *Writer) WriteBool(v bool, width int) {
	var n uint32
	if v {
		n = 1
	}
	if width == 4 {
		w.WriteU32(n)
		return
	}
	w.WriteU8(uint8(n))
}

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteFixedString writes s into exactly n bytes, zero padded. It fails
// when s does not fit.
func (w *Writer) WriteFixedString(s string, n int) error {
	if len(s) > n {
		return nif.Errorf(nif.OutOfBounds, len(w.buf), "string of %d bytes does not fit in %d", len(s), n)
	}
	w.buf = append(w.buf, s...)
	for i := len(s); i < n; i++ {
		w.buf = append(w.buf, 0)
	}
	return nil
}

// WriteSizedString writes a uint32 length prefix and s.
func (w *Writer) WriteSizedString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteShortString writes a uint8 length prefix and s.
func (w *Writer) WriteShortString(s string) error {
	if len(s) > math.MaxUint8 {
		return nif.Errorf(nif.OutOfBounds, len(w.buf), "short string of %d bytes exceeds 255", len(s))
	}
	w.WriteU8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// WriteLine writes s followed by '\n'.
func (w *Writer) WriteLine(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, '\n')
}

// PatchU32 overwrites four already-written bytes at offset.
func (w *Writer) PatchU32(offset int, v uint32) error {
	if offset < 0 || offset+4 > len(w.buf) {
		return nif.Errorf(nif.OutOfBounds, offset, "patch outside %d written bytes", len(w.buf))
	}
	w.order.PutUint32(w.buf[offset:], v)
	return nil
}
