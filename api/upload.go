package api

import (
	"errors"
	"net/http"
	"strings"

	"anonfiles/share-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Upload stages one file into an upload session. The caller may pass its
// own uploadId to group several files into the same session, otherwise a
// fresh one is generated and returned
func (a *API) Upload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	if !strings.HasPrefix(c.Request.Header.Get("Content-Type"), "multipart/form-data") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid multipart form",
			"requestID": requestID,
		})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file uploaded",
			"requestID": requestID,
		})
		return
	}

	fh := files[0]
	uploadID := c.PostForm("uploadId")

	maxSize := viper.GetInt64("upload.max_size")
	if row, err := a.Settings.Get(); err == nil && row.MaxFileSizeMB > 0 {
		if s := row.MaxFileSizeMB << 20; s < maxSize {
			maxSize = s
		}
	}

	if fh.Size > maxSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     validators.ErrFileTooLarge.Error(),
			"requestID": requestID,
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open uploaded file", zap.Error(err))
		return
	}
	defer f.Close()

	staged, err := a.Stager.Stage(c.Request.Context(), uploadID, f, fh.Filename)
	if err != nil {
		switch {
		case errors.Is(err, validators.ErrNoFile),
			errors.Is(err, validators.ErrFileNameTooLong):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
		case errors.Is(err, validators.ErrFileTypeUnsupported):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "File type not allowed",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Error saving file",
				"requestID": requestID,
			})

			zap.L().Error("Failed to stage file", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"uploadId":     staged.UploadID,
		"bytesWritten": staged.BytesWritten,
	})
}
