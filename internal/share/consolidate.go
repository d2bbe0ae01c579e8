package share

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"anonfiles/share-api/config"
	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/stager"
	"anonfiles/share-api/internal/storage"
	"anonfiles/share-api/util"

	"go.uber.org/zap"
)

// NotificationRef carries the pre-issued tag triple and event mask a
// consolidation may bind to its share unit
type NotificationRef struct {
	ChatID    int64
	FileTag   string
	UnlinkTag string
	LinkTag   string
	Settings  meta.NotificationSettings
}

// Policy is everything the uploader decides at consolidation time
type Policy struct {
	ExpirationTime string
	DownloadLimit  int
	Password       string
	Notification   *NotificationRef
}

// Consolidator turns completed staging sessions into permanent share
// units and reclaims sessions nobody finished
type Consolidator struct {
	Stager *stager.Stager
	B      storage.Backend
	Meta   *meta.Store
}

func NewConsolidator(st *stager.Stager, b storage.Backend, m *meta.Store) *Consolidator {
	return &Consolidator{Stager: st, B: b, Meta: m}
}

type stagedEntry struct {
	blobRef string
	record  *meta.Record
}

// Consolidate moves every staged blob of the session into a share
// directory under a freshly randomized name, finalizes the sidecars with
// the policy fields and removes the session. Any mid-move failure rolls
// the destination back so a half-built share unit is never reachable.
//
// When a notification ref is present its file tag becomes the public tag,
// it already sits in the bot deep link handed to the uploader
func (c *Consolidator) Consolidate(ctx context.Context, uploadID string, p Policy) (string, error) {
	sessionDir := c.Stager.SessionDir(uploadID)

	entries, err := c.readSession(sessionDir)
	if err != nil {
		return "", err
	}

	tag := util.ShareTag()
	if p.Notification != nil && p.Notification.FileTag != "" {
		tag = p.Notification.FileTag
	}

	now := time.Now().Unix()

	for _, e := range entries {
		rec := e.record
		rec.ExpirationTime = p.ExpirationTime
		rec.DownloadLimit = p.DownloadLimit
		rec.Password = p.Password
		rec.ConsolidatedAt = now

		if n := p.Notification; n != nil {
			rec.TelegramChatID = n.ChatID
			rec.TelegramFileTag = n.FileTag
			rec.TelegramUnlinkTag = n.UnlinkTag
			rec.TelegramLinkTag = n.LinkTag
			settings := n.Settings
			rec.NotificationSettings = &settings
		}

		// Never reuse the staging blob name in the public directory
		newName := util.BlobName(e.blobRef)

		if err := c.moveBlob(ctx, sessionDir, e.blobRef, tag, newName, rec); err != nil {
			if rbErr := c.B.RemoveDir(ctx, tag); rbErr != nil {
				zap.L().Error("Failed to roll back partial share unit",
					zap.String("tag", tag), zap.Error(rbErr))
			}

			return "", err
		}
	}

	if err := os.RemoveAll(sessionDir); err != nil {
		zap.L().Error("Failed to remove staging session", zap.String("uploadID", uploadID), zap.Error(err))
	}

	zap.L().Info("Session consolidated",
		zap.String("uploadID", uploadID),
		zap.String("tag", tag),
		zap.Int("files", len(entries)),
	)

	// Piggyback the stale session sweep, errors are logged only
	c.SweepStaging()

	return tag, nil
}

// readSession loads the draft sidecars of a session in upload order
func (c *Consolidator) readSession(sessionDir string) ([]stagedEntry, error) {
	dirEntries, err := os.ReadDir(sessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmptySession
		}
		return nil, fmt.Errorf("failed to read staging session, %w", err)
	}

	var entries []stagedEntry
	for _, de := range dirEntries {
		if de.IsDir() || meta.IsSidecar(de.Name()) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(sessionDir, de.Name()+meta.Suffix))
		if err != nil {
			return nil, fmt.Errorf("failed to read draft record, %w", err)
		}

		var rec meta.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode draft record, %w", err)
		}

		entries = append(entries, stagedEntry{blobRef: de.Name(), record: &rec})
	}

	if len(entries) == 0 {
		return nil, ErrEmptySession
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].record.StagedAt < entries[j].record.StagedAt
	})

	return entries, nil
}

func (c *Consolidator) moveBlob(ctx context.Context, sessionDir, blobRef, tag, newName string, rec *meta.Record) error {
	f, err := os.Open(filepath.Join(sessionDir, blobRef))
	if err != nil {
		return fmt.Errorf("failed to open staged blob, %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat staged blob, %w", err)
	}

	if _, err := c.B.Put(ctx, tag, newName, f, stat.Size()); err != nil {
		return err
	}

	return c.Meta.Write(ctx, tag, newName, rec)
}

// SweepStaging deletes staging sessions that haven't been touched for an
// hour. This is the only expiry mechanism abandoned uploads get.
// Best-effort by design, failures are logged and swallowed
func (c *Consolidator) SweepStaging() {
	tempRoot := filepath.Join(c.Stager.Root, "temp")

	dirs, err := os.ReadDir(tempRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Error("Failed to scan staging root", zap.Error(err))
		}
		return
	}

	cutoff := time.Now().Add(-config.StaleSessionAge)

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}

		info, err := d.Info()
		if err != nil {
			zap.L().Error("Failed to stat staging session", zap.String("session", d.Name()), zap.Error(err))
			continue
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(tempRoot, d.Name())); err != nil {
			zap.L().Error("Failed to purge stale session", zap.String("session", d.Name()), zap.Error(err))
			continue
		}

		zap.L().Debug("Purged stale staging session", zap.String("session", d.Name()))
	}
}
