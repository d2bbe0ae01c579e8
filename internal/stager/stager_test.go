package stager

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/validators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageNewSession(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	staged, err := s.Stage(ctx, "", strings.NewReader("hello world"), "my report.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, staged.UploadID)
	assert.Equal(t, "my_report.txt", staged.OriginalName)
	assert.EqualValues(t, 11, staged.BytesWritten)
	assert.True(t, strings.HasSuffix(staged.BlobRef, ".txt"))
	assert.NotContains(t, staged.BlobRef, "my_report")

	blobPath := filepath.Join(s.SessionDir(staged.UploadID), staged.BlobRef)
	data, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	raw, err := os.ReadFile(blobPath + meta.Suffix)
	require.NoError(t, err)

	var rec meta.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "my_report.txt", rec.OriginalName)
	assert.Equal(t, staged.UploadID, rec.UploadID)
	assert.Positive(t, rec.StagedAt)
	assert.Zero(t, rec.DownloadCount)
}

func TestStageReusesSession(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	first, err := s.Stage(ctx, "", strings.NewReader("a"), "a.txt")
	require.NoError(t, err)

	second, err := s.Stage(ctx, first.UploadID, strings.NewReader("b"), "b.txt")
	require.NoError(t, err)
	assert.Equal(t, first.UploadID, second.UploadID)

	entries, err := os.ReadDir(s.SessionDir(first.UploadID))
	require.NoError(t, err)
	// Two blobs plus two sidecars
	assert.Len(t, entries, 4)
}

func TestStageRejectsUnsupportedType(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Stage(context.Background(), "", strings.NewReader("MZ"), "setup.exe")
	assert.ErrorIs(t, err, validators.ErrFileTypeUnsupported)
}

func TestStageKeepsUploadOrder(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	first, err := s.Stage(ctx, "", strings.NewReader("a"), "a.txt")
	require.NoError(t, err)
	second, err := s.Stage(ctx, first.UploadID, strings.NewReader("b"), "b.txt")
	require.NoError(t, err)

	dir := s.SessionDir(first.UploadID)
	readStagedAt := func(blobRef string) int64 {
		raw, err := os.ReadFile(filepath.Join(dir, blobRef+meta.Suffix))
		require.NoError(t, err)

		var rec meta.Record
		require.NoError(t, json.Unmarshal(raw, &rec))
		return rec.StagedAt
	}

	assert.Less(t, readStagedAt(first.BlobRef), readStagedAt(second.BlobRef))
}
