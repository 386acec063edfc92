// Package store persists the shared chunked array that mosaic tasks write
// into. The layout follows the zarr v2 convention: a JSON ".zarray" document
// describing the array plus one object per chunk, keyed by the chunk's grid
// indices.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store type names.
const (
	MemoryStoreType = "MemoryStore"
	LocalStoreType  = "LocalStore"
)

// File permission bits for on-disk chunk objects and directories.
const (
	filePermissionBits = 0o644
	dirPermissionBits  = 0o755
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// Store is a flat key/value object store holding array metadata and chunks.
// Put must be atomic per key: a concurrent Get never observes a partial
// value, and concurrent Puts to distinct keys never interfere.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, val []byte) error
	Type() string
}

// MemoryStore is an in-process store used by tests and dry runs.
type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Type implements Store.
func (s *MemoryStore) Type() string { return MemoryStoreType }

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	out := make([]byte, len(d))
	copy(out, d)

	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key string, val []byte) error {
	d := make([]byte, len(val))
	copy(d, val)

	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d

	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()

	return len(s.data)
}

// LocalStore keeps each key as a file under a base directory, the layout
// object-storage-compatible filesystems expect.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates (if needed) and opens a file-backed store rooted at
// base.
func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}

	mkdirErr := os.MkdirAll(base, dirPermissionBits)
	if mkdirErr != nil {
		return nil, mkdirErr
	}

	return &LocalStore{base: base}, nil
}

// Type implements Store.
func (s *LocalStore) Type() string { return LocalStoreType }

// Get implements Store.
func (s *LocalStore) Get(key string) ([]byte, error) {
	d, err := os.ReadFile(filepath.Join(s.base, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		return nil, err
	}

	return d, nil
}

// Put implements Store. The value is staged to a temporary file and renamed
// into place so readers never observe a partially written chunk.
func (s *LocalStore) Put(key string, val []byte) error {
	path := filepath.Join(s.base, key)

	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPermissionBits)
	if mkdirErr != nil {
		return mkdirErr
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	_, writeErr := tmp.Write(val)
	if writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return writeErr
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		os.Remove(tmp.Name())

		return closeErr
	}

	chmodErr := os.Chmod(tmp.Name(), filePermissionBits)
	if chmodErr != nil {
		os.Remove(tmp.Name())

		return chmodErr
	}

	return os.Rename(tmp.Name(), path)
}
