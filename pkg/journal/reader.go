package journal

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// maxFrameData bounds the key and value bytes of a single frame.
const maxFrameData = 64 << 20

// Reader provides sequential access to the entries of a journal file.
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
}

// NewReader opens the journal at path for reading from the start.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	return &Reader{file: file, reader: bufio.NewReader(file)}, nil
}

// ReadNext returns the next entry, io.EOF after the last complete one, or
// ErrCorruption when the next frame is torn or fails its checksum.
func (r *Reader) ReadNext() (*Entry, error) {
	f, err := r.readFrame()
	if err != nil {
		return nil, err
	}
	return entryFromFrame(f)
}

func (r *Reader) readFrame() (*Frame, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r.reader, header)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, errors.Wrapf(ErrCorruption, "torn frame header at offset %d (%d bytes)", r.offset, n)
	case err != nil:
		return nil, errors.Wrap(err, "read journal")
	}

	keySize := binary.LittleEndian.Uint32(header[4:8])
	valueSize := binary.LittleEndian.Uint32(header[8:12])
	dataSize := int64(keySize) + int64(valueSize)
	if dataSize > maxFrameData {
		return nil, errors.Wrapf(ErrCorruption, "frame at offset %d claims %d bytes", r.offset, dataSize)
	}
	data := make([]byte, headerSize+dataSize)
	copy(data, header)
	if _, err := io.ReadFull(r.reader, data[headerSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrCorruption, "torn frame at offset %d", r.offset)
		}
		return nil, errors.Wrap(err, "read journal")
	}

	f, err := decodeFrame(data)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, errors.Wrapf(err, "frame at offset %d", r.offset)
	}
	r.offset += int64(len(data))
	return f, nil
}

// Offset returns the offset of the next frame.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining entries.
func (r *Reader) Iterator() *Iterator {
	return &Iterator{reader: r}
}

// Close closes the journal file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Iterator walks entries until the end of the journal or the first error.
type Iterator struct {
	reader *Reader
	entry  *Entry
	err    error
}

// Next advances to the next entry.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.entry, it.err = it.reader.ReadNext()
	return it.err == nil
}

// Entry returns the current entry.
func (it *Iterator) Entry() *Entry {
	return it.entry
}

// Err returns the error that stopped iteration, or nil at a clean end.
func (it *Iterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}

// ReadAll returns every complete entry in the journal at path. A missing
// journal has no entries. On a torn tail the entries before it are returned
// along with an ErrCorruption error.
func ReadAll(path string) ([]Entry, error) {
	r, err := NewReader(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()

	var out []Entry
	it := r.Iterator()
	for it.Next() {
		out = append(out, *it.Entry())
	}
	return out, it.Err()
}

// LastByPath returns the most recent successful entry for each path.
func LastByPath(path string) (map[string]Entry, error) {
	entries, err := ReadAll(path)
	last := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Succeeded() {
			last[e.Path] = e
		}
	}
	return last, err
}
