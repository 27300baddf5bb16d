package handlers

import (
	"net/http"

	dbutil "github.com/bitescout/BiteScoutAPI/internal/db"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database; 503 when it is unreachable.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if !dbutil.Ping(c.Request.Context(), h.db) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "database": "up"})
}
