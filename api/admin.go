package api

import (
	"errors"
	"net/http"
	"time"

	"anonfiles/share-api/internal/binding"
	"anonfiles/share-api/internal/meta"
	"anonfiles/share-api/internal/notify"
	"anonfiles/share-api/middleware"
	"anonfiles/share-api/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type adminLoginRequest struct {
	Password string `json:"password"`
}

// AdminLogin checks the admin password and sets the session cookie
func (a *API) AdminLogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password != viper.GetString("admin.password") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid password",
			"requestID": requestID,
		})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret")))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign admin token", zap.Error(err))
		return
	}

	c.SetCookie(middleware.AdminCookie, signed, 86400, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminCheckAuth only exists so the dashboard can test its cookie
func (a *API) AdminCheckAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// AdminSettingsFetch returns the full settings row
func (a *API) AdminSettingsFetch(c *gin.Context) {
	a.SettingsFetch(c)
}

// AdminSettingsUpdate overwrites the global settings
func (a *API) AdminSettingsUpdate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var row model.Settings
	if err := c.ShouldBindJSON(&row); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	if err := a.Settings.Update(&row); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to update settings",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update settings", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminLink struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	FileCount    int    `json:"fileCount"`
	TotalSize    int64  `json:"totalSize"`
	TelegramInfo *struct {
		ChatID               int64                      `json:"chatId"`
		NotificationSettings *meta.NotificationSettings `json:"notificationSettings"`
	} `json:"telegramInfo"`
}

// AdminLinksFetch lists every share unit with its size and notification
// binding, for the dashboard
func (a *API) AdminLinksFetch(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	ctx := c.Request.Context()

	tags, err := a.Blobs.ListDirs(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to fetch links",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list share units", zap.Error(err))
		return
	}

	links := make([]adminLink, 0, len(tags))
	for _, tag := range tags {
		link := adminLink{ID: tag, URL: "/s/" + tag}

		infos, err := a.Gate.Describe(ctx, tag)
		if err == nil {
			link.FileCount = len(infos)
			for _, info := range infos {
				link.TotalSize += info.Size
			}
		}

		if _, rec, err := a.Gate.FirstRecord(ctx, tag); err == nil && rec.TelegramChatID != 0 {
			link.TelegramInfo = &struct {
				ChatID               int64                      `json:"chatId"`
				NotificationSettings *meta.NotificationSettings `json:"notificationSettings"`
			}{
				ChatID:               rec.TelegramChatID,
				NotificationSettings: rec.NotificationSettings,
			}
		}

		links = append(links, link)
	}

	c.JSON(http.StatusOK, links)
}

// AdminLinkDelete removes a whole share unit. A bound chat gets told its
// notifications are gone before the files are
func (a *API) AdminLinkDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	ctx := c.Request.Context()

	tag := c.Query("id")
	if tag == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing id parameter",
			"requestID": requestID,
		})
		return
	}

	if _, rec, err := a.Gate.FirstRecord(ctx, tag); err == nil && rec.TelegramChatID != 0 {
		a.Notifier.Notify(rec.TelegramChatID, notify.EventUnlinked, notify.EventInfo{FileTag: tag})

		if _, err := a.Bindings.RemoveLink(rec.TelegramChatID, tag); err != nil && !errors.Is(err, binding.ErrLinkNotFound) {
			zap.L().Error("Failed to remove binding of deleted link", zap.String("tag", tag), zap.Error(err))
		}
	}

	if err := a.Gate.DeleteShare(ctx, tag); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to delete link",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete share unit", zap.String("tag", tag), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
