package share

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateFinalizesSession(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	uploadID := e.stage(t, []stagedPair{
		{"first.txt", "aaa"},
		{"second.pdf", "bbbb"},
	})
	sessionDir := e.St.SessionDir(uploadID)

	tag, err := e.Cons.Consolidate(ctx, uploadID, Policy{
		ExpirationTime: meta.Expire1Week,
		DownloadLimit:  5,
		Password:       "pw",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tag)

	// The session is gone, the share unit holds a blob and a sidecar per file
	_, statErr := os.Stat(sessionDir)
	assert.True(t, os.IsNotExist(statErr))

	names, err := e.B.List(ctx, tag)
	require.NoError(t, err)
	assert.Len(t, names, 4)

	for _, name := range names {
		if meta.IsSidecar(name) {
			continue
		}

		rec, err := e.Meta.Read(ctx, tag, name)
		require.NoError(t, err)
		assert.Equal(t, meta.Expire1Week, rec.ExpirationTime)
		assert.Equal(t, 5, rec.DownloadLimit)
		assert.Equal(t, "pw", rec.Password)
		assert.Positive(t, rec.ConsolidatedAt)
		assert.Zero(t, rec.DownloadCount)
	}
}

func TestConsolidateRenamesBlobs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	uploadID := e.stage(t, []stagedPair{{"doc.txt", "x"}})

	sessionEntries, err := os.ReadDir(e.St.SessionDir(uploadID))
	require.NoError(t, err)

	staged := map[string]bool{}
	for _, de := range sessionEntries {
		staged[de.Name()] = true
	}

	tag, err := e.Cons.Consolidate(ctx, uploadID, Policy{ExpirationTime: meta.Expire1Day})
	require.NoError(t, err)

	names, err := e.B.List(ctx, tag)
	require.NoError(t, err)

	for _, name := range names {
		assert.False(t, staged[name], "staging name %s leaked into the share unit", name)
	}
}

func TestConsolidateEmptySession(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.Cons.Consolidate(context.Background(), "no-such-session", Policy{})
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestConsolidateUsesNotificationTag(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	uploadID := e.stage(t, []stagedPair{{"doc.txt", "x"}})

	ref := &NotificationRef{
		ChatID:    42,
		FileTag:   "preissued123",
		UnlinkTag: "unlink4567890123",
		LinkTag:   "link456789012345",
		Settings:  meta.NotificationSettings{FileDownloaded: true},
	}

	tag, err := e.Cons.Consolidate(ctx, uploadID, Policy{
		ExpirationTime: meta.Expire1Day,
		Notification:   ref,
	})
	require.NoError(t, err)
	assert.Equal(t, "preissued123", tag)

	blobRef, rec, err := e.Gate.FirstRecord(ctx, tag)
	require.NoError(t, err)
	assert.NotEmpty(t, blobRef)
	assert.EqualValues(t, 42, rec.TelegramChatID)
	assert.Equal(t, "preissued123", rec.TelegramFileTag)
	require.NotNil(t, rec.NotificationSettings)
	assert.True(t, rec.NotificationSettings.FileDownloaded)
}

// failingBackend lets the first put through and rejects the rest, forcing
// a mid-consolidation failure
type failingBackend struct {
	*storage.Local
	puts int
}

func (f *failingBackend) Put(ctx context.Context, dir, name string, r io.Reader, size int64) (int64, error) {
	f.puts++
	if f.puts > 1 {
		return 0, errors.New("disk full")
	}
	return f.Local.Put(ctx, dir, name, r, size)
}

func TestConsolidateRollsBackOnMoveFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	uploadID := e.stage(t, []stagedPair{
		{"one.txt", "1"},
		{"two.txt", "2"},
	})

	fb := &failingBackend{Local: e.B}
	cons := NewConsolidator(e.St, fb, meta.NewStore(fb))

	_, err := cons.Consolidate(ctx, uploadID, Policy{ExpirationTime: meta.Expire1Day})
	require.Error(t, err)

	// The half-built share unit was rolled back entirely
	dirs, err := e.B.ListDirs(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestSweepStagingPurgesStaleSessions(t *testing.T) {
	e := newTestEnv(t)

	staleID := e.stage(t, []stagedPair{{"old.txt", "x"}})
	freshID := e.stage(t, []stagedPair{{"new.txt", "y"}})

	staleDir := e.St.SessionDir(staleID)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, old, old))

	e.Cons.SweepStaging()

	_, err := os.Stat(staleDir)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(e.St.SessionDir(freshID))
	assert.NoError(t, err)

	// A consolidate of the swept session now reports it empty
	_, err = e.Cons.Consolidate(context.Background(), staleID, Policy{})
	assert.ErrorIs(t, err, ErrEmptySession)
}
