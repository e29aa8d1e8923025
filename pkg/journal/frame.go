package journal

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// headerSize is CRC32(4) + KeySize(4) + ValueSize(4) + Timestamp(8).
const headerSize = 20

// Frame is one journal record as stored on disk:
// [CRC32][KeySize][ValueSize][Timestamp][Key][Value], little endian.
type Frame struct {
	CRC32     uint32 // over every field after itself
	KeySize   uint32
	ValueSize uint32
	Timestamp uint64 // Unix nanoseconds
	Key       []byte
	Value     []byte
}

// NewFrame returns an unsealed frame stamped with ts.
func NewFrame(key, value []byte, ts time.Time) (*Frame, error) {
	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return nil, errors.Newf("frame too large: key %d bytes, value %d bytes", len(key), len(value))
	}
	return &Frame{
		KeySize:   uint32(len(key)),
		ValueSize: uint32(len(value)),
		Timestamp: uint64(ts.UnixNano()),
		Key:       key,
		Value:     value,
	}, nil
}

// Size returns the encoded length of the frame.
func (f *Frame) Size() int {
	return headerSize + len(f.Key) + len(f.Value)
}

// Time returns the frame's timestamp.
func (f *Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp))
}

// MarshalBinary seals the frame with its checksum and encodes it.
func (f *Frame) MarshalBinary() ([]byte, error) {
	f.CRC32 = f.checksum()
	buf := make([]byte, f.Size())
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], f.KeySize)
	binary.LittleEndian.PutUint32(buf[8:], f.ValueSize)
	binary.LittleEndian.PutUint64(buf[12:], f.Timestamp)
	copy(buf[headerSize:], f.Key)
	copy(buf[headerSize+len(f.Key):], f.Value)
	return buf, nil
}

// decodeFrame parses one frame. Key and Value alias data.
func decodeFrame(data []byte) (*Frame, error) {
	if len(data) < headerSize {
		return nil, errors.Wrapf(ErrCorruption, "frame header needs %d bytes, have %d", headerSize, len(data))
	}
	f := &Frame{
		CRC32:     binary.LittleEndian.Uint32(data[0:4]),
		KeySize:   binary.LittleEndian.Uint32(data[4:8]),
		ValueSize: binary.LittleEndian.Uint32(data[8:12]),
		Timestamp: binary.LittleEndian.Uint64(data[12:20]),
	}
	need := int64(headerSize) + int64(f.KeySize) + int64(f.ValueSize)
	if int64(len(data)) < need {
		return nil, errors.Wrapf(ErrCorruption, "frame needs %d bytes, have %d", need, len(data))
	}
	keyEnd := headerSize + int(f.KeySize)
	f.Key = data[headerSize:keyEnd]
	f.Value = data[keyEnd : keyEnd+int(f.ValueSize)]
	return f, nil
}

// Validate checks the stored checksum against the frame's contents.
func (f *Frame) Validate() error {
	if sum := f.checksum(); sum != f.CRC32 {
		return errors.Wrapf(ErrCorruption, "crc32 mismatch: stored %08x, computed %08x", f.CRC32, sum)
	}
	return nil
}

func (f *Frame) checksum() uint32 {
	var hdr [headerSize - 4]byte
	binary.LittleEndian.PutUint32(hdr[0:], f.KeySize)
	binary.LittleEndian.PutUint32(hdr[4:], f.ValueSize)
	binary.LittleEndian.PutUint64(hdr[8:], f.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(f.Key)
	crc.Write(f.Value)
	return crc.Sum32()
}
