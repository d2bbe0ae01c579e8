// Package storage holds the blob backends a share unit's files can live in.
// Staging is always local, consolidated share units go wherever
// storage.type points
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob or a whole share directory doesn't
// exist. Callers treat it as a 404, everything else as a storage failure
var ErrNotFound = errors.New("blob not found")

// Backend abstracts a flat two-level layout: one directory per share unit,
// blobs and their sidecars inside it
type Backend interface {
	// Put streams r into dir/name, creating the directory implicitly.
	// A negative size means the length isn't known up front. Partial
	// writes are not cleaned up, that's on the caller
	Put(ctx context.Context, dir, name string, r io.Reader, size int64) (int64, error)

	// Open returns the blob stream and its size
	Open(ctx context.Context, dir, name string) (io.ReadCloser, int64, error)

	// Stat returns the blob size without opening it
	Stat(ctx context.Context, dir, name string) (int64, error)

	ReadFile(ctx context.Context, dir, name string) ([]byte, error)
	WriteFile(ctx context.Context, dir, name string, data []byte) error

	// List returns the file names inside dir, sidecars included
	List(ctx context.Context, dir string) ([]string, error)

	// ListDirs returns every share unit directory
	ListDirs(ctx context.Context) ([]string, error)

	// Remove deletes a single blob, idempotent on missing files
	Remove(ctx context.Context, dir, name string) error

	// RemoveDir deletes a whole share directory recursively, idempotent
	// on missing paths
	RemoveDir(ctx context.Context, dir string) error
}
