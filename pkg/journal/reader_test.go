package journal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJournal(t *testing.T, entries ...Entry) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "journal.log")
	writer, err := NewWriter(WriterConfig{FilePath: filePath})
	require.NoError(t, err)
	for _, e := range entries {
		_, err := writer.Append(e)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return filePath
}

func TestReader_ReadNext(t *testing.T) {
	ts := time.Date(2025, 6, 22, 8, 0, 0, 0, time.UTC)
	want := Entry{
		Path:      "meshes/a.nif",
		Output:    "out/meshes/a.nif",
		Status:    "converted",
		From:      "20.0.0.5 (user 11, bs 11)",
		To:        "20.2.0.7 (user 12, bs 83)",
		Records:   14,
		InputCRC:  0xDEADBEEF,
		OutputCRC: 0x0BADF00D,
		BackupID:  "2yYqZ0nA8kP3Jv3xWq7tQy3cLm1",
		Time:      ts,
	}
	filePath := writeJournal(t, want)

	reader, err := NewReader(filePath)
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Output, got.Output)
	assert.Equal(t, want.From, got.From)
	assert.Equal(t, want.To, got.To)
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, want.InputCRC, got.InputCRC)
	assert.Equal(t, want.OutputCRC, got.OutputCRC)
	assert.Equal(t, want.BackupID, got.BackupID)
	assert.True(t, want.Time.Equal(got.Time))
	assert.True(t, got.Succeeded())

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), reader.Offset())

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
}

func TestReader_NonExistentFile(t *testing.T) {
	reader, err := NewReader(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestReader_Iterator(t *testing.T) {
	filePath := writeJournal(t,
		Entry{Path: "a.nif", Status: "converted"},
		Entry{Path: "b.nif", Status: "failed", Error: "unknown type"},
		Entry{Path: "c.nif", Status: "skipped"},
	)

	reader, err := NewReader(filePath)
	require.NoError(t, err)
	defer reader.Close()

	var paths []string
	it := reader.Iterator()
	for it.Next() {
		paths = append(paths, it.Entry().Path)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a.nif", "b.nif", "c.nif"}, paths)
	assert.False(t, it.Next())
}

func TestReader_TornTail(t *testing.T) {
	filePath := writeJournal(t,
		Entry{Path: "a.nif", Status: "converted"},
		Entry{Path: "b.nif", Status: "converted"},
	)
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(filePath, info.Size()-3))

	entries, err := ReadAll(filePath)
	assert.True(t, errors.Is(err, ErrCorruption), "got %v", err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.nif", entries[0].Path)
}

func TestReader_TornHeader(t *testing.T) {
	filePath := writeJournal(t, Entry{Path: "a.nif", Status: "converted"})
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := ReadAll(filePath)
	assert.ErrorIs(t, err, ErrCorruption)
	assert.Len(t, entries, 1)
}

func TestReader_CorruptedChecksum(t *testing.T) {
	filePath := writeJournal(t, Entry{Path: "a.nif", Status: "converted"})
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	data[len(data)-2] ^= 0xFF
	require.NoError(t, os.WriteFile(filePath, data, 0600))

	reader, err := NewReader(filePath)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	assert.ErrorIs(t, err, ErrCorruption)
	assert.Equal(t, int64(0), reader.Offset())
}

func TestReader_OversizeFrame(t *testing.T) {
	header := make([]byte, headerSize)
	header[7] = 0xFF // key size of 0xFF000000
	filePath := filepath.Join(t.TempDir(), "journal.log")
	require.NoError(t, os.WriteFile(filePath, header, 0600))

	_, err := ReadAll(filePath)
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestReadAll_MissingJournal(t *testing.T) {
	entries, err := ReadAll(filepath.Join(t.TempDir(), "none.log"))
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestLastByPath(t *testing.T) {
	filePath := writeJournal(t,
		Entry{Path: "a.nif", Status: "converted", InputCRC: 1},
		Entry{Path: "b.nif", Status: "converted", InputCRC: 2},
		Entry{Path: "a.nif", Status: "converted", InputCRC: 3},
		Entry{Path: "b.nif", Status: "failed", InputCRC: 4, Error: "truncated"},
		Entry{Path: "c.nif", Status: "failed", Error: "truncated"},
	)

	last, err := LastByPath(filePath)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, uint32(3), last["a.nif"].InputCRC)
	assert.Equal(t, uint32(2), last["b.nif"].InputCRC)
	assert.NotContains(t, last, "c.nif")
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(nil))
	assert.Equal(t, uint32(0xCBF43926), Checksum([]byte("123456789")))
}
