//go:build bench
// +build bench

package journal

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func BenchmarkFrame_Marshal(b *testing.B) {
	benchmarks := []struct {
		name  string
		key   []byte
		value []byte
	}{
		{"small", []byte("meshes/a.nif"), []byte(`{"status":"converted"}`)},
		{"medium", bytes.Repeat([]byte("k"), 100), bytes.Repeat([]byte("v"), 1000)},
		{"large", bytes.Repeat([]byte("k"), 1000), bytes.Repeat([]byte("v"), 10000)},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			ts := time.Now()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				f, _ := NewFrame(bm.key, bm.value, ts)
				if _, err := f.MarshalBinary(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkWriter_Append(b *testing.B) {
	writer, err := NewWriter(WriterConfig{
		FilePath:      filepath.Join(b.TempDir(), "journal.log"),
		FsyncInterval: time.Second,
		BufferSize:    64 << 10,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer writer.Close()

	e := Entry{Path: "meshes/architecture/wall01.nif", Status: "converted", Records: 42}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := writer.Append(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadAll(b *testing.B) {
	path := filepath.Join(b.TempDir(), "journal.log")
	writer, err := NewWriter(WriterConfig{FilePath: path, FsyncInterval: time.Second})
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if _, err := writer.Append(Entry{Path: "meshes/a.nif", Status: "converted"}); err != nil {
			b.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadAll(path); err != nil {
			b.Fatal(err)
		}
	}
}
