package api

import (
	"errors"
	"net/http"

	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/share"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type consolidateRequest struct {
	UploadID             string                     `json:"uploadId"`
	ExpirationTime       string                     `json:"expirationTime"`
	DownloadLimit        int                        `json:"downloadLimit"`
	Password             string                     `json:"password"`
	TelegramChatID       int64                      `json:"telegramChatId"`
	TelegramFileTag      string                     `json:"telegramFileTag"`
	TelegramUnlinkTag    string                     `json:"telegramUnlinkTag"`
	TelegramLinkTag      string                     `json:"telegramLinkTag"`
	NotificationSettings *meta.NotificationSettings `json:"notificationSettings"`
}

// Consolidate finalizes an upload session into a share link, attaching
// the expiration, limit, password and notification binding to every file
func (a *API) Consolidate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var req consolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	if req.UploadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing uploadId",
			"requestID": requestID,
		})
		return
	}

	if req.DownloadLimit < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid download limit",
			"requestID": requestID,
		})
		return
	}

	expiration := req.ExpirationTime
	switch expiration {
	case meta.Expire1Day, meta.Expire1Week, meta.Expire1Month:
	case meta.ExpireForever:
		// Forever storage is an admin-gated feature
		if row, err := a.Settings.Get(); err != nil || !row.ForeverStorageEnabled {
			expiration = meta.Expire1Month
		}
	default:
		expiration = meta.Expire1Day
	}

	policy := share.Policy{
		ExpirationTime: expiration,
		DownloadLimit:  req.DownloadLimit,
		Password:       req.Password,
	}

	if req.TelegramChatID != 0 {
		settings := meta.NotificationSettings{}
		if req.NotificationSettings != nil {
			settings = *req.NotificationSettings
		}

		policy.Notification = &share.NotificationRef{
			ChatID:    req.TelegramChatID,
			FileTag:   req.TelegramFileTag,
			UnlinkTag: req.TelegramUnlinkTag,
			LinkTag:   req.TelegramLinkTag,
			Settings:  settings,
		}
	}

	tag, err := a.Cons.Consolidate(c.Request.Context(), req.UploadID, policy)
	if err != nil {
		if errors.Is(err, share.ErrEmptySession) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "No files to consolidate",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Error consolidating files",
			"requestID": requestID,
		})

		zap.L().Error("Failed to consolidate session", zap.String("uploadID", req.UploadID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shareLink": "/s/" + tag,
	})
}
