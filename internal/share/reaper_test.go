package share

import (
	"context"
	"testing"
	"time"

	"anonfiles/share-api/internal/meta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiredRemovesDeadEntries(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tag := e.makeShare(t, Policy{ExpirationTime: meta.Expire1Day}, []stagedPair{
		{"short.txt", "x"},
		{"long.txt", "y"},
	})

	// Back-date the first entry past its lifetime
	blobRef, rec, err := e.Gate.FirstRecord(ctx, tag)
	require.NoError(t, err)
	rec.ConsolidatedAt = time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, e.Meta.Write(ctx, tag, blobRef, rec))

	r := NewReaper(e.B, e.Meta, e.Cons)
	defer r.Stop()

	r.sweepExpired(ctx)

	infos, err := e.Gate.Describe(ctx, tag)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "long.txt", infos[0].Name)
}

func TestSweepExpiredDropsEmptyShare(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tag := e.makeShare(t, Policy{ExpirationTime: meta.Expire1Day}, []stagedPair{{"only.txt", "x"}})

	blobRef, rec, err := e.Gate.FirstRecord(ctx, tag)
	require.NoError(t, err)
	rec.ConsolidatedAt = time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, e.Meta.Write(ctx, tag, blobRef, rec))

	r := NewReaper(e.B, e.Meta, e.Cons)
	defer r.Stop()

	r.sweepExpired(ctx)

	dirs, err := e.B.ListDirs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, dirs, tag)
}

func TestScheduledDeleteFiresAfterGrace(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tag := e.makeShare(t, Policy{ExpirationTime: meta.Expire1Day}, []stagedPair{{"doomed.txt", "x"}})

	blobRef, _, err := e.Gate.FirstRecord(ctx, tag)
	require.NoError(t, err)

	r := NewReaper(e.B, e.Meta, e.Cons)
	defer r.Stop()

	// Shrink the grace delay so the expiry callback fires within the test
	require.NoError(t, r.pending.SetTTL(10*time.Millisecond))
	r.ScheduleDelete(tag, blobRef)

	assert.Eventually(t, func() bool {
		_, err := e.Gate.Describe(ctx, tag)
		return err != nil
	}, 3*time.Second, 20*time.Millisecond)
}
