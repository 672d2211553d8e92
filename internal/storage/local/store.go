package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store keeps one JSON document per record under
// <base>/<collection>/<id>.json. Records may hold session cookies, so
// everything it creates is private to the user.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates the base directory if needed
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Path returns the directory the store writes to
func (s *Store) Path() string {
	return s.basePath
}

func (s *Store) recordPath(collection, id string) (string, error) {
	for _, name := range [...]string{collection, id} {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return filepath.Join(s.basePath, collection, id+".json"), nil
}

// Save writes data as indented JSON. The record is staged in a temp file
// and renamed into place, so a reader sees either the old or the new one.
func (s *Store) Save(collection, id string, data any) error {
	path, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("stage %s/%s: %w", collection, id, err)
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.Write(append(body, '\n'))
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, werr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit %s/%s: %w", collection, id, err)
	}
	return nil
}

// Load decodes the record into data. A missing record is ErrNotFound.
func (s *Store) Load(collection, id string, data any) error {
	path, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}

	s.mu.RLock()
	body, err := os.ReadFile(path)
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the record. A missing record is ErrNotFound.
func (s *Store) Delete(collection, id string) error {
	path, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	return nil
}
