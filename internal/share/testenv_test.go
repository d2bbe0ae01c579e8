package share

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/notify"
	"anonfiles/share-api/internal/stager"
	"anonfiles/share-api/internal/storage"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ int64, event notify.Event, _ notify.EventInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) Send(_ context.Context, _ int64, _ string) error {
	return nil
}

func (f *fakeNotifier) fired() []notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Event(nil), f.events...)
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeScheduler) ScheduleDelete(tag, blobRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, tag+"/"+blobRef)
}

func (f *fakeScheduler) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scheduled...)
}

type fakeBindings struct {
	unlinkTags map[string]string
}

func (f fakeBindings) UnlinkTagFor(fileTag string, _ int64) (string, bool) {
	tag, ok := f.unlinkTags[fileTag]
	return tag, ok
}

type testEnv struct {
	B     *storage.Local
	Meta  *meta.Store
	St    *stager.Stager
	Cons  *Consolidator
	Gate  *Gate
	Notes *fakeNotifier
	Sched *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()

	b, err := storage.NewLocal(root)
	require.NoError(t, err)

	m := meta.NewStore(b)
	st := stager.New(root)
	notes := &fakeNotifier{}
	sched := &fakeScheduler{}

	return &testEnv{
		B:     b,
		Meta:  m,
		St:    st,
		Cons:  NewConsolidator(st, b, m),
		Gate:  NewGate(b, m, notes, fakeBindings{}, sched, false),
		Notes: notes,
		Sched: sched,
	}
}

type stagedPair struct {
	name    string
	content string
}

// stage pushes files into a fresh session in order and returns the
// uploadID. The pause keeps the staging timestamps strictly increasing
func (e *testEnv) stage(t *testing.T, files []stagedPair) string {
	t.Helper()

	uploadID := ""
	for _, f := range files {
		staged, err := e.St.Stage(context.Background(), uploadID, strings.NewReader(f.content), f.name)
		require.NoError(t, err)
		uploadID = staged.UploadID

		time.Sleep(time.Millisecond)
	}

	return uploadID
}

// makeShare runs the whole stage-then-consolidate pipeline
func (e *testEnv) makeShare(t *testing.T, p Policy, files []stagedPair) string {
	t.Helper()

	uploadID := e.stage(t, files)

	tag, err := e.Cons.Consolidate(context.Background(), uploadID, p)
	require.NoError(t, err)

	return tag
}
