// Package model defines database models
package model

// ChatLink is an active notification binding between a Telegram chat and
// one share unit. A chat may hold any number of links
type ChatLink struct {
	ID     uint  `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID int64 `gorm:"index" json:"chatId"`

	// Public tag of the share unit this binding watches. Chosen before
	// consolidation so the tag can be baked into the bot deep link
	FileTag string `gorm:"index" json:"fileTag"`

	// Secondary secret used to revoke just this binding
	UnlinkTag string `gorm:"index" json:"unlinkTag"`

	CreatedAt int64 `json:"-"`
}

// LinkToken is a single-use activation token. Issued when the uploader
// requests a bot deep link, redeemed exactly once when the chat sends
// /start with it
type LinkToken struct {
	LinkTag   string `gorm:"primaryKey" json:"linkTag"`
	FileTag   string `json:"fileTag"`
	UnlinkTag string `json:"unlinkTag"`
	Used      bool   `json:"used"`
	CreatedAt int64  `json:"createdAt"`
}
