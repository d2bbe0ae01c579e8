package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettingsFetch returns the public settings the upload form needs
func (a *API) SettingsFetch(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	row, err := a.Settings.Get()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to read settings",
			"requestID": requestID,
		})

		zap.L().Error("Failed to read settings", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, row)
}
