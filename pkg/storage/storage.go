// Package storage defines the FileStore interface for whole-object blob
// storage. It abstracts the backend so callers can swap between local disk
// and S3-compatible object stores without changing application code.
//
// The service uses it to archive raw enrollment recordings next to the
// derived voice profiles.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidPath is returned for paths that are empty, absolute or escape
// the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileStore stores small objects addressed by slash-separated paths.
//
// Paths are relative to the store root. Implementations must be safe for
// concurrent use, and Put must replace an object atomically.
type FileStore interface {
	// Put stores data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte, contentType string) error

	// Get returns the object at path. A missing object yields an error
	// wrapping os.ErrNotExist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of all objects under the directory prefix,
	// sorted lexicographically.
	List(ctx context.Context, prefix string) ([]string, error)
}

// cleanPath validates p and returns its canonical form.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return c, nil
}
