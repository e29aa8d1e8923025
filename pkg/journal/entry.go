package journal

import (
	"encoding/json"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrCorruption is returned for a frame that is torn or fails its checksum.
var ErrCorruption = errors.New("journal: data corruption detected")

// Entry is the outcome of processing one file.
type Entry struct {
	Path   string `json:"path"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"`
	// From and To are version descriptions, e.g. "20.2.0.7 (user 11, bs 34)".
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Records   int       `json:"records,omitempty"`
	InputCRC  uint32    `json:"input_crc"`
	OutputCRC uint32    `json:"output_crc,omitempty"`
	BackupID  string    `json:"backup_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Succeeded reports whether the entry records a file that was processed
// without error.
func (e Entry) Succeeded() bool { return e.Error == "" }

// Checksum is the CRC32 used for InputCRC and OutputCRC.
func Checksum(data []byte) uint32 { return crc32.ChecksumIEEE(data) }

func (e Entry) frame() (*Frame, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal journal entry")
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return NewFrame([]byte(e.Path), value, ts)
}

func entryFromFrame(f *Frame) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(f.Value, &e); err != nil {
		return nil, errors.Wrapf(ErrCorruption, "entry for %q: %v", f.Key, err)
	}
	if e.Time.IsZero() {
		e.Time = f.Time()
	}
	return &e, nil
}
