package meta

import (
	"context"
	"encoding/json"
	"fmt"

	"anonfiles/share-api/internal/storage"
)

// Store reads and writes sidecar records through the blob backend so the
// sidecar always lives next to its blob, whatever the backend is.
//
// Writes are full overwrites, not merges, and there is no locking: two
// concurrent writers to the same record race and the last one wins
type Store struct {
	B storage.Backend
}

func NewStore(b storage.Backend) *Store {
	return &Store{B: b}
}

// Read loads the record of a blob. Returns storage.ErrNotFound when the
// sidecar is missing
func (s *Store) Read(ctx context.Context, dir, blobRef string) (*Record, error) {
	raw, err := s.B.ReadFile(ctx, dir, blobRef+Suffix)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode metadata record, %w", err)
	}

	return &rec, nil
}

// Write replaces the record of a blob wholesale. Callers that mutate
// counters must read-modify-write
func (s *Store) Write(ctx context.Context, dir, blobRef string, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode metadata record, %w", err)
	}

	return s.B.WriteFile(ctx, dir, blobRef+Suffix, raw)
}

// Remove deletes the sidecar of a blob
func (s *Store) Remove(ctx context.Context, dir, blobRef string) error {
	return s.B.Remove(ctx, dir, blobRef+Suffix)
}
