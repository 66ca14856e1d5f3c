// Package memory provides a thread-safe in-memory implementation of storage.FileStore.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jmcleod/cloudbox/storage"
)

// Store is a thread-safe in-memory implementation of storage.FileStore.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ storage.FileStore = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{files: make(map[string][]byte)}
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

// Write buffers all of r before publishing it, so a failed or slow reader
// never exposes partial content.
func (s *Store) Write(ctx context.Context, name string, r io.Reader) error {
	if !storage.ValidName(name) {
		return fmt.Errorf("%q: %w", name, storage.ErrInvalidName)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}
