// Package binding manages the chat↔share-link notification bindings and
// the single-use activation tokens that create them
package binding

import (
	"errors"
	"fmt"
	"time"

	"anonfiles/share-api/model"
	"anonfiles/share-api/util"

	"gorm.io/gorm"
)

// ErrTokenInvalid is returned when an activation token doesn't exist or
// was already redeemed
var ErrTokenInvalid = errors.New("invalid or already used link")

// ErrLinkNotFound is returned when no binding matches the given chat and
// identifier
var ErrLinkNotFound = errors.New("link not found")

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// IssueRef mints a fresh tag triple and persists the activation token.
// The fileTag is handed to the consolidator later so the share unit ends
// up under the tag the bot deep link already points at
func (s *Store) IssueRef() (*model.LinkToken, error) {
	token := &model.LinkToken{
		LinkTag:   util.LinkTag(),
		FileTag:   util.ShareTag(),
		UnlinkTag: util.UnlinkTag(),
		Used:      false,
		CreatedAt: time.Now().Unix(),
	}

	if err := s.DB.Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to save activation token, %w", err)
	}

	return token, nil
}

// Redeem consumes an activation token exactly once and binds the chat to
// the token's file tag. A second redeem of the same tag fails
func (s *Store) Redeem(chatID int64, linkTag string) (*model.LinkToken, error) {
	var token model.LinkToken

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("link_tag = ? AND used = ?", linkTag, false).First(&token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return err
		}

		err = tx.Model(model.LinkToken{}).
			Where("link_tag = ?", linkTag).
			Update("used", true).
			Error
		if err != nil {
			return err
		}

		return tx.Create(&model.ChatLink{
			ChatID:    chatID,
			FileTag:   token.FileTag,
			UnlinkTag: token.UnlinkTag,
			CreatedAt: time.Now().Unix(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &token, nil
}

// RemoveLink revokes one binding of a chat, matched by either its unlink
// tag or its file tag, and returns the removed row
func (s *Store) RemoveLink(chatID int64, identifier string) (*model.ChatLink, error) {
	var link model.ChatLink

	err := s.DB.
		Where("chat_id = ? AND (unlink_tag = ? OR file_tag = ?)", chatID, identifier, identifier).
		First(&link).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to look up link, %w", err)
	}

	if err := s.DB.Delete(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to remove link, %w", err)
	}

	return &link, nil
}

// Links returns every active binding of a chat
func (s *Store) Links(chatID int64) ([]model.ChatLink, error) {
	var links []model.ChatLink

	err := s.DB.
		Where("chat_id = ?", chatID).
		Order("created_at").
		Find(&links).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list links, %w", err)
	}

	return links, nil
}

// ByFileTag finds the binding watching a share unit, if any
func (s *Store) ByFileTag(fileTag string) (*model.ChatLink, error) {
	var link model.ChatLink

	err := s.DB.Where("file_tag = ?", fileTag).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to look up link, %w", err)
	}

	return &link, nil
}

// UnlinkTagFor is the lookup the gate embeds into download notifications.
// The bool is false when the share has no binding for that chat
func (s *Store) UnlinkTagFor(fileTag string, chatID int64) (string, bool) {
	var link model.ChatLink

	err := s.DB.
		Where("file_tag = ? AND chat_id = ?", fileTag, chatID).
		First(&link).
		Error
	if err != nil {
		return "", false
	}

	return link.UnlinkTag, true
}
