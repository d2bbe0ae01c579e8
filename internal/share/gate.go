package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/notify"
	"anonfiles/share-api/internal/storage"

	"go.uber.org/zap"
)

// BindingDirectory is the slice of the binding store the gate needs to
// embed unlink commands into download notifications
type BindingDirectory interface {
	UnlinkTagFor(fileTag string, chatID int64) (string, bool)
}

// DeleteScheduler queues an exhausted entry for deletion after the grace
// delay
type DeleteScheduler interface {
	ScheduleDelete(tag, blobRef string)
}

// Gate decides every download attempt: password, limit, counters,
// notifications, cleanup scheduling
type Gate struct {
	B         storage.Backend
	Meta      *meta.Store
	Notifier  notify.Notifier
	Bindings  BindingDirectory
	Scheduler DeleteScheduler

	// When set, counter updates of the same blob are serialized through
	// a keyed mutex. Off by default: the original lets two simultaneous
	// downloads race on the counter and slightly overshoot the limit
	serialize bool
	mu        sync.Mutex
	locks     map[string]*sync.Mutex
}

func NewGate(b storage.Backend, m *meta.Store, n notify.Notifier, bd BindingDirectory, ds DeleteScheduler, serialize bool) *Gate {
	return &Gate{
		B:         b,
		Meta:      m,
		Notifier:  n,
		Bindings:  bd,
		Scheduler: ds,
		serialize: serialize,
		locks:     map[string]*sync.Mutex{},
	}
}

// FileInfo is the public descriptor of one file entry. The password
// itself never leaves the gate
type FileInfo struct {
	Name                string `json:"name"`
	Size                int64  `json:"size"`
	SystemName          string `json:"systemName"`
	DownloadCount       int    `json:"downloadCount"`
	ExpirationTime      string `json:"expirationTime"`
	DownloadLimit       int    `json:"downloadLimit"`
	IsPasswordProtected bool   `json:"isPasswordProtected"`
}

// Download is a gated byte stream plus the name the browser should save
// it under
type Download struct {
	Body io.ReadCloser
	Size int64
	Name string
}

// Describe lists every live file entry of a share unit in upload order.
// Read-only, calling it twice without a download in between returns
// identical counters
func (g *Gate) Describe(ctx context.Context, tag string) ([]FileInfo, error) {
	names, err := g.B.List(ctx, tag)
	if err != nil {
		return nil, err
	}

	type ordered struct {
		info     FileInfo
		stagedAt int64
	}

	var infos []ordered
	for _, name := range names {
		if meta.IsSidecar(name) {
			continue
		}

		rec, err := g.Meta.Read(ctx, tag, name)
		if err != nil {
			zap.L().Error("Failed to read record during listing",
				zap.String("tag", tag), zap.String("blob", name), zap.Error(err))
			continue
		}

		size, err := g.B.Stat(ctx, tag, name)
		if err != nil {
			zap.L().Error("Failed to stat blob during listing",
				zap.String("tag", tag), zap.String("blob", name), zap.Error(err))
			continue
		}

		infos = append(infos, ordered{
			info:     describeRecord(rec, name, size),
			stagedAt: rec.StagedAt,
		})
	}

	if len(infos) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].stagedAt < infos[j].stagedAt })

	out := make([]FileInfo, len(infos))
	for i, o := range infos {
		out[i] = o.info
	}

	return out, nil
}

// Probe performs the password check as a standalone operation against
// the share's first entry. Notifications fire exactly like on a download
// attempt
func (g *Gate) Probe(ctx context.Context, tag, password string) (*FileInfo, error) {
	blobRef, rec, err := g.FirstRecord(ctx, tag)
	if err != nil {
		return nil, err
	}

	if err := g.checkPassword(rec, password); err != nil {
		return nil, err
	}

	size, err := g.B.Stat(ctx, tag, blobRef)
	if err != nil {
		return nil, err
	}

	info := describeRecord(rec, blobRef, size)
	return &info, nil
}

// Serve runs the full download state machine for one file entry. The
// counter update is persisted before the stream is handed out so a crash
// mid-transfer still reflects the attempt
func (g *Gate) Serve(ctx context.Context, tag, blobRef, password string) (*Download, error) {
	if g.serialize {
		l := g.lockFor(tag + "/" + blobRef)
		l.Lock()
		defer l.Unlock()
	}

	rec, err := g.Meta.Read(ctx, tag, blobRef)
	if err != nil {
		return nil, err
	}

	if err := g.checkPassword(rec, password); err != nil {
		return nil, err
	}

	if rec.LimitExhausted() {
		return nil, ErrLimitReached
	}

	now := time.Now()
	rec.Downloads++
	rec.DownloadCount++
	rec.LastDownloadDate = &now

	if err := g.Meta.Write(ctx, tag, blobRef, rec); err != nil {
		return nil, fmt.Errorf("failed to persist download attempt, %w", err)
	}

	if rec.Notifies(func(s meta.NotificationSettings) bool { return s.FileDownloaded }) {
		// A missing binding row means the chat revoked the link, the
		// event is silenced even when the sidecar still carries the chat
		if unlinkTag, ok := g.Bindings.UnlinkTagFor(tag, rec.TelegramChatID); ok {
			g.Notifier.Notify(rec.TelegramChatID, notify.EventFileDownloaded, notify.EventInfo{
				FileName:      rec.OriginalName,
				FileTag:       tag,
				DownloadCount: rec.DownloadCount,
				DownloadLimit: rec.DownloadLimit,
				UnlinkTag:     unlinkTag,
			})
		}
	}

	// The entry just became exhausted. It stays downloadable for the
	// grace window, physical deletion comes later
	if rec.LimitExhausted() {
		g.Scheduler.ScheduleDelete(tag, blobRef)
	}

	body, size, err := g.B.Open(ctx, tag, blobRef)
	if err != nil {
		return nil, err
	}

	return &Download{
		Body: body,
		Size: size,
		Name: rec.OriginalName,
	}, nil
}

// DeleteShare removes a whole share unit wholesale. Used by the admin
// surface and the bot's /delete command
func (g *Gate) DeleteShare(ctx context.Context, tag string) error {
	return g.B.RemoveDir(ctx, tag)
}

// FirstRecord returns the first entry of a share unit in upload order
func (g *Gate) FirstRecord(ctx context.Context, tag string) (string, *meta.Record, error) {
	names, err := g.B.List(ctx, tag)
	if err != nil {
		return "", nil, err
	}

	var (
		firstRef string
		firstRec *meta.Record
	)
	for _, name := range names {
		if meta.IsSidecar(name) {
			continue
		}

		rec, err := g.Meta.Read(ctx, tag, name)
		if err != nil {
			continue
		}

		if firstRec == nil || rec.StagedAt < firstRec.StagedAt {
			firstRef, firstRec = name, rec
		}
	}

	if firstRec == nil {
		return "", nil, ErrNotFound
	}

	return firstRef, firstRec, nil
}

// ClearBinding strips the notification binding of a chat from every
// sidecar of a share unit. Called when the binding is revoked
func (g *Gate) ClearBinding(ctx context.Context, tag string, chatID int64) error {
	names, err := g.B.List(ctx, tag)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	for _, name := range names {
		if meta.IsSidecar(name) {
			continue
		}

		rec, err := g.Meta.Read(ctx, tag, name)
		if err != nil {
			continue
		}

		if rec.TelegramChatID != chatID {
			continue
		}

		rec.TelegramChatID = 0
		rec.TelegramFileTag = ""
		rec.TelegramUnlinkTag = ""
		rec.TelegramLinkTag = ""
		rec.NotificationSettings = nil

		if err := g.Meta.Write(ctx, tag, name, rec); err != nil {
			return err
		}
	}

	return nil
}

// checkPassword enforces the password and fires the matching
// notification. The validPassword event fires even when a later limit
// check fails, notification and authorization are independent
func (g *Gate) checkPassword(rec *meta.Record, supplied string) error {
	if !rec.PasswordOK(supplied) {
		if rec.Notifies(func(s meta.NotificationSettings) bool { return s.WrongPassword }) {
			g.Notifier.Notify(rec.TelegramChatID, notify.EventWrongPassword, notify.EventInfo{
				FileName: rec.OriginalName,
			})
		}

		return ErrForbidden
	}

	if rec.Protected() {
		if rec.Notifies(func(s meta.NotificationSettings) bool { return s.ValidPassword }) {
			g.Notifier.Notify(rec.TelegramChatID, notify.EventValidPassword, notify.EventInfo{
				FileName: rec.OriginalName,
			})
		}
	}

	return nil
}

func (g *Gate) lockFor(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}

	return l
}

func describeRecord(rec *meta.Record, blobRef string, size int64) FileInfo {
	return FileInfo{
		Name:                rec.OriginalName,
		Size:                size,
		SystemName:          blobRef,
		DownloadCount:       rec.DownloadCount,
		ExpirationTime:      rec.ExpirationTime,
		DownloadLimit:       rec.DownloadLimit,
		IsPasswordProtected: rec.Protected(),
	}
}
