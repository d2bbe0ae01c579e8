package api

import (
	"errors"
	"net/http"
	"net/url"

	"anonfiles/share-api/internal/share"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileDownload streams one file of a share unit through the access gate.
// The download counter is already persisted by the time the first byte
// goes out
func (a *API) FileDownload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	tag := c.Param("tag")
	blobRef := c.Param("file")

	var req passwordRequest
	// An absent body counts as an empty password
	c.ShouldBindJSON(&req)

	dl, err := a.Gate.Serve(c.Request.Context(), tag, blobRef, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Incorrect password",
				"requestID": requestID,
			})
		case errors.Is(err, share.ErrLimitReached):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Download limit reached",
				"requestID": requestID,
			})
		case errors.Is(err, share.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Error processing download",
				"requestID": requestID,
			})

			zap.L().Error("Failed to serve download",
				zap.String("tag", tag), zap.String("blob", blobRef), zap.Error(err))
		}
		return
	}
	defer dl.Body.Close()

	c.DataFromReader(http.StatusOK, dl.Size, "application/octet-stream", dl.Body, map[string]string{
		"Content-Disposition": `attachment; filename=` + url.PathEscape(dl.Name),
		"Cache-Control":       "no-cache",
	})
}
