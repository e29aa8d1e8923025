package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
)

// ErrNotFound is returned for an unknown backup ID.
var ErrNotFound = errors.New("backup not found")

var (
	metaPrefix = []byte("m/")
	dataPrefix = []byte("d/")
)

// Backup describes one saved copy of a file's original bytes.
type Backup struct {
	ID      ksuid.KSUID `json:"id"`
	Path    string      `json:"path"`
	Version string      `json:"version"`
	Size    int         `json:"size"`
	Created time.Time   `json:"created"`
}

// BackupStore keeps original NIF bytes keyed by KSUID, so listing is in
// creation order.
type BackupStore struct {
	db *pebble.DB

	mu   sync.Mutex
	last ksuid.KSUID
}

// NewBackupStore opens or creates the store at path. opts may be nil.
func NewBackupStore(path string, opts *pebble.Options) (*BackupStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open backup store %s", path)
	}
	return &BackupStore{db: db}, nil
}

func metaKey(id ksuid.KSUID) []byte { return append(append([]byte{}, metaPrefix...), id.Bytes()...) }
func dataKey(id ksuid.KSUID) []byte { return append(append([]byte{}, dataPrefix...), id.Bytes()...) }

// Save stores data as the original contents of path and returns its record.
func (s *BackupStore) Save(path, version string, data []byte) (*Backup, error) {
	b := &Backup{
		ID:      s.nextID(),
		Path:    path,
		Version: version,
		Size:    len(data),
		Created: time.Now().UTC(),
	}
	meta, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "marshal backup metadata")
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(dataKey(b.ID), data, nil); err != nil {
		return nil, err
	}
	if err := batch.Set(metaKey(b.ID), meta, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, errors.Wrap(err, "commit backup")
	}
	return b, nil
}

// nextID returns a KSUID greater than every ID this store has issued.
func (s *BackupStore) nextID() ksuid.KSUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ksuid.New()
	if ksuid.Compare(id, s.last) <= 0 {
		id = s.last.Next()
	}
	s.last = id
	return id
}

// Load returns a backup's metadata and bytes.
func (s *BackupStore) Load(id ksuid.KSUID) (*Backup, []byte, error) {
	b, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.get(dataKey(id))
	if err != nil {
		return nil, nil, err
	}
	return b, data, nil
}

// Get returns a backup's metadata.
func (s *BackupStore) Get(id ksuid.KSUID) (*Backup, error) {
	raw, err := s.get(metaKey(id))
	if err != nil {
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.Wrapf(err, "decode backup %s", id)
	}
	return &b, nil
}

func (s *BackupStore) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(v), nil
}

// List returns backups oldest first. A non-empty path keeps only backups of
// that file.
func (s *BackupStore) List(path string) ([]Backup, error) {
	upper := append([]byte{}, metaPrefix...)
	upper[len(upper)-1]++
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: metaPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Backup
	for it.First(); it.Valid(); it.Next() {
		var b Backup
		if err := json.Unmarshal(it.Value(), &b); err != nil {
			return nil, errors.Wrapf(err, "decode backup at %x", it.Key())
		}
		if path == "" || b.Path == path {
			out = append(out, b)
		}
	}
	return out, it.Error()
}

// Latest returns the most recent backup of path.
func (s *BackupStore) Latest(path string) (*Backup, error) {
	list, err := s.List(path)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[len(list)-1], nil
}

// Restore writes a backup's bytes back to the path it was taken from.
func (s *BackupStore) Restore(id ksuid.KSUID) (*Backup, error) {
	b, data, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(b.Path), 0750); err != nil {
		return nil, errors.Wrap(err, "create restore directory")
	}
	if err := os.WriteFile(b.Path, data, 0600); err != nil {
		return nil, errors.Wrapf(err, "restore %s", b.Path)
	}
	return b, nil
}

// Delete removes a backup. Deleting an unknown ID is an error.
func (s *BackupStore) Delete(id ksuid.KSUID) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(metaKey(id), nil); err != nil {
		return err
	}
	if err := batch.Delete(dataKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Close closes the underlying database.
func (s *BackupStore) Close() error {
	return s.db.Close()
}
