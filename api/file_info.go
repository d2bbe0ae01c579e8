package api

import (
	"errors"
	"net/http"

	"anonfiles/share-api/internal/share"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileInfo lists the files behind a share link, counters and policy
// flags included but never the password
func (a *API) FileInfo(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	tag := c.Param("tag")

	infos, err := a.Gate.Describe(c.Request.Context(), tag)
	if err != nil {
		if errors.Is(err, share.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Error reading file information",
			"requestID": requestID,
		})

		zap.L().Error("Failed to describe share unit", zap.String("tag", tag), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": infos,
	})
}

type passwordRequest struct {
	Password string `json:"password"`
}

// FileInfoProbe runs the password check without downloading anything.
// Wrong and right guesses both trigger the bound notifications
func (a *API) FileInfoProbe(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	tag := c.Param("tag")

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	info, err := a.Gate.Probe(c.Request.Context(), tag, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Incorrect password",
				"requestID": requestID,
			})
		case errors.Is(err, share.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Error processing password check",
				"requestID": requestID,
			})

			zap.L().Error("Failed to probe share unit", zap.String("tag", tag), zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, info)
}
