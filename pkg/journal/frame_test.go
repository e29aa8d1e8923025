package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 22, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		key   []byte
		value []byte
	}{
		{
			name:  "path and entry",
			key:   []byte("meshes/architecture/wall01.nif"),
			value: []byte(`{"path":"meshes/architecture/wall01.nif","status":"converted"}`),
		},
		{
			name:  "empty key",
			key:   []byte(""),
			value: []byte("{}"),
		},
		{
			name:  "both empty",
			key:   []byte(""),
			value: []byte(""),
		},
		{
			name:  "binary data",
			key:   []byte{0x00, 0x01, 0x02, 0x03},
			value: []byte{0xFF, 0xFE, 0xFD, 0xFC},
		},
		{
			name:  "large value",
			key:   []byte("k"),
			value: bytes.Repeat([]byte("v"), 10240),
		},
		{
			name:  "unicode path",
			key:   []byte("meshes/clutter/tasse_à_café.nif"),
			value: []byte("{}"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFrame(tc.key, tc.value, ts)
			if err != nil {
				t.Fatalf("NewFrame failed: %v", err)
			}
			encoded, err := f.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}
			if len(encoded) != f.Size() {
				t.Fatalf("encoded %d bytes, Size says %d", len(encoded), f.Size())
			}

			decoded, err := decodeFrame(encoded)
			if err != nil {
				t.Fatalf("decodeFrame failed: %v", err)
			}
			if err := decoded.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !bytes.Equal(decoded.Key, tc.key) {
				t.Errorf("Key mismatch: got %q, want %q", decoded.Key, tc.key)
			}
			if !bytes.Equal(decoded.Value, tc.value) {
				t.Errorf("Value mismatch: got %q, want %q", decoded.Value, tc.value)
			}
			if !decoded.Time().Equal(ts) {
				t.Errorf("Time = %v, want %v", decoded.Time(), ts)
			}
		})
	}
}

func TestFrame_CRCValidation(t *testing.T) {
	key := []byte("meshes/rock.nif")
	value := []byte(`{"status":"converted"}`)

	testCases := []struct {
		name string
		pos  int
	}{
		{"crc field", 0},
		{"timestamp", 12},
		{"key data", headerSize},
		{"value data", headerSize + len(key)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFrame(key, value, time.Now())
			if err != nil {
				t.Fatalf("NewFrame failed: %v", err)
			}
			encoded, _ := f.MarshalBinary()
			encoded[tc.pos] ^= 0xFF

			decoded, err := decodeFrame(encoded)
			if err != nil {
				t.Fatalf("decodeFrame failed: %v", err)
			}
			err = decoded.Validate()
			if !errors.Is(err, ErrCorruption) {
				t.Errorf("Validate = %v, want ErrCorruption", err)
			}
		})
	}
}

func TestFrame_MalformedData(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty data", data: []byte{}},
		{name: "too short for header", data: []byte{0x01, 0x02, 0x03}},
		{
			name: "insufficient data for declared key size",
			data: func() []byte {
				buf := make([]byte, headerSize)
				binary.LittleEndian.PutUint32(buf[4:8], 100)
				return buf
			}(),
		},
		{
			name: "insufficient data for declared value size",
			data: func() []byte {
				buf := make([]byte, headerSize+5)
				binary.LittleEndian.PutUint32(buf[4:8], 5)
				binary.LittleEndian.PutUint32(buf[8:12], 100)
				return buf
			}(),
		},
		{
			name: "sizes overflow",
			data: func() []byte {
				buf := make([]byte, headerSize)
				binary.LittleEndian.PutUint32(buf[4:8], 0xFFFFFFFF)
				binary.LittleEndian.PutUint32(buf[8:12], 0xFFFFFFFF)
				return buf
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeFrame(tc.data)
			if !errors.Is(err, ErrCorruption) {
				t.Errorf("decodeFrame = %v, want ErrCorruption", err)
			}
		})
	}
}

func TestFrame_Size(t *testing.T) {
	testCases := []struct {
		name         string
		key          []byte
		value        []byte
		expectedSize int
	}{
		{"empty key and value", nil, nil, headerSize},
		{"small key and value", []byte("key"), []byte("value"), headerSize + 3 + 5},
		{"large data", bytes.Repeat([]byte("k"), 1000), bytes.Repeat([]byte("v"), 2000), headerSize + 3000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFrame(tc.key, tc.value, time.Now())
			if err != nil {
				t.Fatalf("NewFrame failed: %v", err)
			}
			if f.Size() != tc.expectedSize {
				t.Errorf("Size mismatch: got %d, want %d", f.Size(), tc.expectedSize)
			}
		})
	}
}

func TestFrame_Checksum(t *testing.T) {
	ts := time.Now()
	a, _ := NewFrame([]byte("a.nif"), []byte("{}"), ts)
	b, _ := NewFrame([]byte("b.nif"), []byte("{}"), ts)

	if a.CRC32 != 0 {
		t.Errorf("unsealed frame has CRC32 %08x", a.CRC32)
	}
	if a.checksum() != a.checksum() {
		t.Error("checksum is not deterministic")
	}
	if a.checksum() == b.checksum() {
		t.Error("different keys produced the same checksum")
	}
}
