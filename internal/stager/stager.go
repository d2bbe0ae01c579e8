// Package stager accepts uploads one file at a time into per-session
// staging directories. Staging is always on local disk, final placement
// happens at consolidation
package stager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/util"
	"anonfiles/share-api/validators"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Stager writes uploads into <root>/temp/<uploadID>
type Stager struct {
	Root string
}

func New(root string) *Stager {
	return &Stager{Root: root}
}

// StagedFile describes one accepted upload
type StagedFile struct {
	UploadID     string
	BlobRef      string
	OriginalName string
	BytesWritten int64
}

// SessionDir returns the staging directory of an upload session
func (s *Stager) SessionDir(uploadID string) string {
	return filepath.Join(s.Root, "temp", uploadID)
}

// Stage streams one file into the session directory, creating the session
// on first use. An empty uploadID starts a fresh session. The blob gets a
// random storage name, the display name only survives inside the draft
// sidecar. A failed copy removes the partial blob before returning
func (s *Stager) Stage(ctx context.Context, uploadID string, r io.Reader, displayName string) (*StagedFile, error) {
	safeName := validators.SanitizeFileName(displayName)
	if err := validators.CheckFileName(safeName); err != nil {
		return nil, err
	}

	if uploadID == "" {
		uploadID = util.UploadID()
	}

	dir := s.SessionDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory, %w", err)
	}

	blobRef := util.BlobName(safeName)
	blobPath := filepath.Join(dir, blobRef)

	f, err := os.Create(blobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged blob, %w", err)
	}

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		// Aborted or failed mid-stream, don't leave the partial blob around
		if rmErr := os.Remove(blobPath); rmErr != nil {
			zap.L().Error("Failed to discard partial staged blob", zap.Error(rmErr))
		}

		return nil, fmt.Errorf("failed to write staged blob, %w", err)
	}

	// StagedAt keeps the upload order around, the random blob names
	// don't sort chronologically
	draft := &meta.Record{
		OriginalName: safeName,
		UploadID:     uploadID,
		Downloads:    0,
		StagedAt:     time.Now().UnixNano(),
	}

	if mime, err := mimetype.DetectFile(blobPath); err == nil {
		draft.Format = mime.String()
	}

	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft record, %w", err)
	}

	if err := os.WriteFile(blobPath+meta.Suffix, raw, 0o644); err != nil {
		os.Remove(blobPath)
		return nil, fmt.Errorf("failed to write draft record, %w", err)
	}

	zap.L().Debug("File staged",
		zap.String("uploadID", uploadID),
		zap.String("blob", blobRef),
		zap.Int64("bytes", written),
	)

	return &StagedFile{
		UploadID:     uploadID,
		BlobRef:      blobRef,
		OriginalName: safeName,
		BytesWritten: written,
	}, nil
}
