package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *BackupStore {
	t.Helper()
	s, err := NewBackupStore("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBackupStore_SaveLoad(t *testing.T) {
	s := newMemStore(t)
	data := []byte("Gamebryo File Format, Version 20.0.0.5\n")

	b, err := s.Save("meshes/a.nif", "20.0.0.5", data)
	require.NoError(t, err)
	assert.False(t, b.ID.IsNil())
	assert.Equal(t, len(data), b.Size)

	got, raw, err := s.Load(b.ID)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
	assert.Equal(t, "meshes/a.nif", got.Path)
	assert.Equal(t, "20.0.0.5", got.Version)
	assert.Equal(t, b.ID, got.ID)
	assert.True(t, b.Created.Equal(got.Created))
}

func TestBackupStore_LoadMissing(t *testing.T) {
	s := newMemStore(t)

	_, _, err := s.Load(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupStore_List(t *testing.T) {
	s := newMemStore(t)

	paths := []string{"a.nif", "b.nif", "a.nif", "c.nif", "a.nif"}
	var ids []ksuid.KSUID
	for i, p := range paths {
		b, err := s.Save(p, "20.2.0.7", []byte{byte(i)})
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, len(paths))
	for i, b := range all {
		assert.Equal(t, ids[i], b.ID, "backup %d out of order", i)
		assert.Equal(t, paths[i], b.Path)
	}

	onlyA, err := s.List("a.nif")
	require.NoError(t, err)
	require.Len(t, onlyA, 3)
	assert.Equal(t, []ksuid.KSUID{ids[0], ids[2], ids[4]}, []ksuid.KSUID{onlyA[0].ID, onlyA[1].ID, onlyA[2].ID})

	latest, err := s.Latest("a.nif")
	require.NoError(t, err)
	assert.Equal(t, ids[4], latest.ID)

	_, err = s.Latest("missing.nif")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupStore_Delete(t *testing.T) {
	s := newMemStore(t)

	b, err := s.Save("a.nif", "20.2.0.7", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(b.ID))

	_, _, err = s.Load(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := s.List("")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.Delete(b.ID), ErrNotFound)
}

func TestBackupStore_Restore(t *testing.T) {
	s := newMemStore(t)
	target := filepath.Join(t.TempDir(), "meshes", "a.nif")
	original := []byte("original bytes")

	b, err := s.Save(target, "20.0.0.5", original)
	require.NoError(t, err)

	restored, err := s.Restore(b.ID)
	require.NoError(t, err)
	assert.Equal(t, target, restored.Path)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestBackupStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")

	s, err := NewBackupStore(dir, nil)
	require.NoError(t, err)
	b, err := s.Save("a.nif", "20.2.0.7", []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewBackupStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	_, data, err := s.Load(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}
