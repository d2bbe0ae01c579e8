package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"anonfiles/share-api/internal/binding"
	"anonfiles/share-api/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TelegramGenerateRef mints a tag triple and hands the uploader a bot
// deep link. The fileTag goes back into the consolidate call later so
// the share unit lands under the tag the bot already knows
func (a *API) TelegramGenerateRef(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	token, err := a.Bindings.IssueRef()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to generate ref link",
			"requestID": requestID,
		})

		zap.L().Error("Failed to issue activation token", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refLink":   fmt.Sprintf("https://t.me/%s?start=%s", viper.GetString("telegram.bot_name"), token.LinkTag),
		"fileTag":   token.FileTag,
		"unlinkTag": token.UnlinkTag,
		"linkTag":   token.LinkTag,
	})
}

// TelegramStatus tells the upload form whether the bot deep link was
// redeemed yet, and by which chat. The form polls this after handing out
// the refLink so it can put the chatId into the consolidate call
func (a *API) TelegramStatus(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	fileTag := c.Query("fileTag")
	if fileTag == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing fileTag parameter",
			"requestID": requestID,
		})
		return
	}

	link, err := a.Bindings.ByFileTag(fileTag)
	if err != nil {
		if errors.Is(err, binding.ErrLinkNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "Link not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to check link status",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up binding status", zap.String("fileTag", fileTag), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "linked",
		"chatId": link.ChatID,
	})
}

type telegramUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// TelegramWebhook handles bot commands: /start <linkTag> activates a
// binding (single use), /unlink <tag> revokes one, /list shows a chat's
// active links, /delete <fileTag> removes an owned share unit.
// The webhook always answers 200, bot errors go back as chat messages
func (a *API) TelegramWebhook(c *gin.Context) {
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil || update.Message == nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	ctx := c.Request.Context()

	switch cmd {
	case "/start":
		token, err := a.Bindings.Redeem(chatID, arg)
		if err != nil {
			if errors.Is(err, binding.ErrTokenInvalid) {
				a.reply(c, chatID, "Error: invalid or already used link for notification binding.")
				return
			}

			zap.L().Error("Failed to redeem activation token", zap.Error(err))
			a.reply(c, chatID, "An error occurred while activating notifications. Please try again.")
			return
		}

		a.reply(c, chatID, fmt.Sprintf(
			"You have successfully connected notifications to your files!\n\nTo unlink notifications for this link, use the command:\n/unlink %s\n\nTo view a list of all your active links, use the command:\n/list",
			token.UnlinkTag,
		))

	case "/unlink":
		if arg == "" {
			a.reply(c, chatID, "Please specify the tag to unlink after the /unlink command.")
			return
		}

		link, err := a.Bindings.RemoveLink(chatID, arg)
		if err != nil {
			a.reply(c, chatID, "An error occurred while disabling notifications. Please check the tag correctness or try again.")
			return
		}

		if err := a.Gate.ClearBinding(ctx, link.FileTag, chatID); err != nil {
			zap.L().Error("Failed to clear binding from sidecars", zap.String("tag", link.FileTag), zap.Error(err))
		}

		a.reply(c, chatID, "Notifications for the specified link have been successfully disabled.")

	case "/list":
		links, err := a.Bindings.Links(chatID)
		if err != nil || len(links) == 0 {
			a.reply(c, chatID, "You have no active links.")
			return
		}

		var b strings.Builder
		b.WriteString("<b>Your active links:</b>\n\n")

		domain := viper.GetString("host.domain")
		for _, link := range links {
			infos, err := a.Gate.Describe(ctx, link.FileTag)
			if err != nil || len(infos) == 0 {
				continue
			}

			file := infos[0]
			fmt.Fprintf(&b, "🔗 <b>File:</b> %s\n", file.Name)
			fmt.Fprintf(&b, "📥 <b>Link:</b> https://%s/s/%s\n", domain, link.FileTag)
			fmt.Fprintf(&b, "🔓 <b>Unlink command:</b> /unlink %s\n", link.UnlinkTag)
			fmt.Fprintf(&b, "📊 <b>Downloads:</b> %d", file.DownloadCount)
			if file.DownloadLimit > 0 {
				fmt.Fprintf(&b, " / %d", file.DownloadLimit)
			}
			b.WriteString("\n\n")
		}

		a.reply(c, chatID, b.String())

	case "/delete":
		if arg == "" {
			a.reply(c, chatID, "Please specify the file tag to delete after the /delete command.")
			return
		}

		link, err := a.Bindings.ByFileTag(arg)
		if err != nil || link.ChatID != chatID {
			a.reply(c, chatID, "You do not have permission to delete this file or the file does not exist.")
			return
		}

		if err := a.Gate.DeleteShare(ctx, arg); err != nil {
			zap.L().Error("Failed to delete share unit via bot", zap.String("tag", arg), zap.Error(err))
			a.reply(c, chatID, fmt.Sprintf("An error occurred while deleting the file with tag %s.", arg))
			return
		}

		if _, err := a.Bindings.RemoveLink(chatID, arg); err != nil && !errors.Is(err, binding.ErrLinkNotFound) {
			zap.L().Error("Failed to remove binding of deleted share", zap.String("tag", arg), zap.Error(err))
		}

		a.Notifier.Notify(chatID, notify.EventDeleted, notify.EventInfo{FileTag: arg})
		c.JSON(http.StatusOK, gin.H{"success": true})

	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// reply sends a bot message synchronously and closes the webhook call
func (a *API) reply(c *gin.Context, chatID int64, text string) {
	if err := a.Notifier.Send(c.Request.Context(), chatID, text); err != nil {
		zap.L().Error("Failed to send bot reply", zap.Int64("chatID", chatID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
