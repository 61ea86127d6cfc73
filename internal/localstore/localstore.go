// Package localstore implements durable local storage for the sync core: a
// small file-backed key/value store with a deployment-specific prefix. The
// credential cache mirrors the serialized credential through it so a process
// restart can answer "am I authenticated" before any network call.
//
// Writes are atomic (temp file + rename) so a crash mid-write never leaves a
// half-serialized credential behind.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBadKey is returned when a key is empty or would escape the storage dir.
var ErrBadKey = errors.New("localstore: invalid key")

// Store is a file-per-key durable KV store. It is safe for concurrent use.
type Store struct {
	dir    string
	prefix string
	mu     sync.Mutex
}

// New creates (if needed) the backing directory and returns a Store whose
// files are namespaced by prefix, e.g. "studysync.credential.json".
func New(dir, prefix string) (*Store, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("localstore: prefix must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localstore: create dir: %w", err)
	}
	return &Store{dir: dir, prefix: prefix}, nil
}

// GetItem returns the stored value for key. The boolean reports presence;
// a missing key is not an error.
func (s *Store) GetItem(key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: read %q: %w", key, err)
	}
	return string(b), true, nil
}

// SetItem durably stores value under key, replacing any previous value.
func (s *Store) SetItem(key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+s.prefix+"-*")
	if err != nil {
		return fmt.Errorf("localstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("localstore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: rename %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the value for key. Removing a missing key is a no-op.
func (s *Store) RemoveItem(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localstore: remove %q: %w", key, err)
	}
	return nil
}

// path maps a key to its backing file, rejecting keys that would traverse
// outside the storage directory.
func (s *Store) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", ErrBadKey
	}
	return filepath.Join(s.dir, s.prefix+"."+key+".json"), nil
}
