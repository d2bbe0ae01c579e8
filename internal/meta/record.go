// Package meta handles the metadata sidecars driving every access
// decision. Each blob has exactly one record stored next to it as
// <blob>.meta
package meta

import (
	"strings"
	"time"
)

// Suffix marks sidecar files inside a share directory
const Suffix = ".meta"

// Expiration policy values accepted from clients
const (
	Expire1Day    = "1d"
	Expire1Week   = "1w"
	Expire1Month  = "1m"
	ExpireForever = "forever"
)

// NotificationSettings is the per-event mask of a notification binding
type NotificationSettings struct {
	WrongPassword  bool `json:"wrongPassword"`
	ValidPassword  bool `json:"validPassword"`
	FileDownloaded bool `json:"fileDownloaded"`
}

// Record is the sidecar content. Field names are a persisted format, they
// can't change without breaking existing uploads
type Record struct {
	OriginalName     string     `json:"originalName"`
	UploadID         string     `json:"uploadId,omitempty"`
	Format           string     `json:"format,omitempty"`
	StagedAt         int64      `json:"stagedAt,omitempty"`
	ExpirationTime   string     `json:"expirationTime,omitempty"`
	DownloadLimit    int        `json:"downloadLimit"`
	Downloads        int        `json:"downloads"`
	DownloadCount    int        `json:"downloadCount"`
	LastDownloadDate *time.Time `json:"lastDownloadDate"`

	// Stored as plain text. Comparison is exact string equality, no
	// normalization. Known weakness kept for behavioral parity
	Password string `json:"password,omitempty"`

	// Unix seconds of consolidation, the anchor expirationTime counts from
	ConsolidatedAt int64 `json:"consolidatedAt,omitempty"`

	TelegramChatID       int64                 `json:"telegramChatId,omitempty"`
	TelegramFileTag      string                `json:"telegramFileTag,omitempty"`
	TelegramUnlinkTag    string                `json:"telegramUnlinkTag,omitempty"`
	TelegramLinkTag      string                `json:"telegramLinkTag,omitempty"`
	NotificationSettings *NotificationSettings `json:"notificationSettings,omitempty"`
}

// Protected reports whether a password must be supplied to access the file
func (r *Record) Protected() bool {
	return r.Password != ""
}

// PasswordOK checks a supplied password against the stored one. Entries
// without a password are public
func (r *Record) PasswordOK(supplied string) bool {
	return r.Password == "" || r.Password == supplied
}

// LimitExhausted reports whether the download limit has been used up.
// A limit of 0 means unlimited
func (r *Record) LimitExhausted() bool {
	return r.DownloadLimit != 0 && r.DownloadCount >= r.DownloadLimit
}

// Expired reports whether the entry's lifetime has passed at the given
// time. Records without a consolidation stamp never expire, they predate
// the stamp
func (r *Record) Expired(now time.Time) bool {
	if r.ConsolidatedAt == 0 || r.ExpirationTime == "" || r.ExpirationTime == ExpireForever {
		return false
	}

	var d time.Duration
	switch r.ExpirationTime {
	case Expire1Day:
		d = 24 * time.Hour
	case Expire1Week:
		d = 7 * 24 * time.Hour
	case Expire1Month:
		d = 30 * 24 * time.Hour
	default:
		return false
	}

	return now.After(time.Unix(r.ConsolidatedAt, 0).Add(d))
}

// Notifies reports whether the given event is bound and enabled
func (r *Record) Notifies(enabled func(NotificationSettings) bool) bool {
	return r.TelegramChatID != 0 && r.NotificationSettings != nil && enabled(*r.NotificationSettings)
}

// IsSidecar reports whether a directory entry is a metadata sidecar
// rather than a blob
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, Suffix)
}
