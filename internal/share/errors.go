// Package share implements the file lifecycle core: consolidating staged
// uploads into share units, gating downloads and reaping what expired
package share

import (
	"errors"

	"anonfiles/share-api/internal/storage"
)

var (
	// ErrEmptySession means the staging session holds no files, either
	// because nothing was uploaded or the reaper already purged it
	ErrEmptySession = errors.New("no files to consolidate")

	// ErrForbidden means the supplied password didn't match. Retryable
	ErrForbidden = errors.New("incorrect password")

	// ErrLimitReached means the download limit is used up. Terminal
	ErrLimitReached = errors.New("download limit reached")

	// ErrNotFound mirrors the storage sentinel so callers only need one
	ErrNotFound = storage.ErrNotFound
)
