// Package storage provides the abstraction over the flat set of stored files.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when a named file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned when a write targets a name that is not a
	// single path element.
	ErrInvalidName = errors.New("invalid file name")
)

// FileStore is a flat, single-level collection of named files.
//
// Implementations must make Write atomic with respect to Read and List: a
// reader observes either the previous content or the complete new content,
// never a partial write. Concurrent writers of the same name race and the
// last one to finish wins.
type FileStore interface {
	// List returns the names of all stored files. The order is unspecified.
	List(ctx context.Context) ([]string, error)
	// Write stores the content of r under name, replacing any existing file.
	Write(ctx context.Context, name string, r io.Reader) error
	// Read returns the full content of the named file.
	Read(ctx context.Context, name string) ([]byte, error)
}

// ValidName reports whether name can address a file directly inside the
// store root: non-empty, not "." or "..", and free of path separators and
// NUL bytes.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
