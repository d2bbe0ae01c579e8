package share

import (
	"context"
	"errors"
	"strings"
	"time"

	"anonfiles/share-api/config"
	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/storage"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
)

// Reaper runs the detached cleanup work: purging stale staging sessions,
// expiring entries past their lifetime and executing the grace-delayed
// deletions the gate schedules.
//
// Scheduled deletions live in memory only. A restart before the grace
// delay elapses loses them, the next expiry sweep is the backstop
type Reaper struct {
	B    storage.Backend
	Meta *meta.Store
	Cons *Consolidator

	pending *ttlcache.Cache
	done    chan struct{}
}

func NewReaper(b storage.Backend, m *meta.Store, cons *Consolidator) *Reaper {
	r := &Reaper{
		B:    b,
		Meta: m,
		Cons: cons,
		done: make(chan struct{}),
	}

	cache := ttlcache.NewCache()
	cache.SetTTL(config.DeleteGraceDelay)
	cache.SkipTTLExtensionOnHit(true)
	cache.SetExpirationCallback(func(key string, _ interface{}) {
		tag, blobRef, ok := strings.Cut(key, "/")
		if !ok {
			return
		}
		r.deleteEntry(context.Background(), tag, blobRef)
	})

	r.pending = cache
	return r
}

// ScheduleDelete queues a blob and its sidecar for deletion once the
// grace delay passed. Fire-and-forget
func (r *Reaper) ScheduleDelete(tag, blobRef string) {
	if err := r.pending.Set(tag+"/"+blobRef, struct{}{}); err != nil {
		zap.L().Error("Failed to schedule deletion",
			zap.String("tag", tag), zap.String("blob", blobRef), zap.Error(err))
		return
	}

	zap.L().Debug("Deletion scheduled",
		zap.String("tag", tag),
		zap.String("blob", blobRef),
		zap.Duration("after", config.DeleteGraceDelay),
	)
}

// Start attaches the periodic sweep. No ordering guarantee exists
// between a sweep and concurrent gate operations, a download racing a
// deletion may end in NotFound
func (r *Reaper) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)

	zap.L().Debug("Reaper attached", zap.Duration("tick_every", interval))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.Cons.SweepStaging()
				r.sweepExpired(context.Background())
			}
		}
	}()
}

// Stop shuts the sweep loop and the pending deletion timers down
func (r *Reaper) Stop() {
	close(r.done)
	r.pending.Close()
}

// sweepExpired walks every share unit and deletes entries whose lifetime
// has passed. Share directories that end up empty are dropped entirely
func (r *Reaper) sweepExpired(ctx context.Context) {
	tags, err := r.B.ListDirs(ctx)
	if err != nil {
		zap.L().Error("Failed to list share units", zap.Error(err))
		return
	}

	now := time.Now()

	for _, tag := range tags {
		names, err := r.B.List(ctx, tag)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				zap.L().Error("Failed to list share unit", zap.String("tag", tag), zap.Error(err))
			}
			continue
		}

		for _, name := range names {
			if meta.IsSidecar(name) {
				continue
			}

			rec, err := r.Meta.Read(ctx, tag, name)
			if err != nil {
				continue
			}

			if rec.Expired(now) {
				r.deleteEntry(ctx, tag, name)
			}
		}
	}
}

// deleteEntry removes one blob plus its sidecar and the share directory
// once nothing is left in it
func (r *Reaper) deleteEntry(ctx context.Context, tag, blobRef string) {
	if err := r.B.Remove(ctx, tag, blobRef); err != nil {
		zap.L().Error("Failed to delete blob", zap.String("tag", tag), zap.String("blob", blobRef), zap.Error(err))
		return
	}

	if err := r.Meta.Remove(ctx, tag, blobRef); err != nil {
		zap.L().Error("Failed to delete sidecar", zap.String("tag", tag), zap.String("blob", blobRef), zap.Error(err))
	}

	names, err := r.B.List(ctx, tag)
	if err == nil && len(names) > 0 {
		zap.L().Debug("Entry deleted", zap.String("tag", tag), zap.String("blob", blobRef))
		return
	}

	if err := r.B.RemoveDir(ctx, tag); err != nil {
		zap.L().Error("Failed to remove empty share unit", zap.String("tag", tag), zap.Error(err))
		return
	}

	zap.L().Debug("Share unit removed", zap.String("tag", tag))
}
