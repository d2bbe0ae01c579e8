// Package notify pushes gate events to the uploader's messaging channel.
// Everything here is best-effort: a dead channel must never fail a
// download
package notify

import (
	"context"
	"fmt"
)

// Event kinds fired by the gate and the admin/bot surfaces
type Event string

const (
	EventWrongPassword  Event = "wrongPassword"
	EventValidPassword  Event = "validPassword"
	EventFileDownloaded Event = "fileDownloaded"
	EventUnlinked       Event = "unlinked"
	EventDeleted        Event = "deleted"
)

// EventInfo carries the bits the message templates need
type EventInfo struct {
	FileName      string
	FileTag       string
	DownloadCount int
	DownloadLimit int
	UnlinkTag     string
}

// Notifier delivers messages to a chat. Notify is fire-and-forget and
// must never block or surface errors to the caller; Send is the raw
// synchronous primitive the bot command replies use
type Notifier interface {
	Notify(chatID int64, event Event, info EventInfo)
	Send(ctx context.Context, chatID int64, text string) error
}

func message(event Event, info EventInfo) string {
	switch event {
	case EventWrongPassword:
		return fmt.Sprintf("❌ <b>Wrong Password</b>\n\nSomeone tried to access your file \"%s\" but entered an incorrect password.", info.FileName)
	case EventValidPassword:
		return fmt.Sprintf("✅ <b>Correct Password</b>\n\nSomeone successfully entered the correct password to access your file \"%s\".", info.FileName)
	case EventFileDownloaded:
		msg := fmt.Sprintf("📥 <b>File Downloaded</b>\n\nFile name: <code>%s</code>\nDownload count: %d", info.FileName, info.DownloadCount)
		if info.UnlinkTag != "" {
			msg += fmt.Sprintf("\n\nTo unlink notifications for this link, use the command:\n/unlink %s", info.UnlinkTag)
		}
		return msg
	case EventUnlinked:
		return fmt.Sprintf("Notifications for the link with tag %s have been disabled.", info.FileTag)
	case EventDeleted:
		return fmt.Sprintf("File with tag %s has been successfully deleted.", info.FileTag)
	}

	return ""
}
