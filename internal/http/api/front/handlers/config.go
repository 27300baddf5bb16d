package handlers

import (
	"net/http"

	internalsettings "github.com/bitescout/BiteScoutAPI/internal/settings"
	"github.com/gin-gonic/gin"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName string `json:"siteName"`
}

// GetPublicConfig returns public configuration for clients.
func GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{SiteName: internalsettings.SiteName()})
}
