package blobstore

import (
	"context"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store holds whole, immutable blobs addressed by slash-separated names.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the content of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// CleanName validates and normalizes a blob name. Names are relative,
// slash-separated and must not escape the store root.
func CleanName(name string) (string, error) {
	c := path.Clean(strings.TrimPrefix(name, "/"))
	if name == "" || c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", &os.PathError{Op: "blob", Path: name, Err: os.ErrInvalid}
	}
	return c, nil
}
