package handlers

import (
	"net/http"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	dbutil "github.com/bitescout/BiteScoutAPI/internal/db"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Presence reports how many users hold a live realtime session on this instance.
type Presence interface {
	Users() int
}

// StatusHandler reports operational counters for admins.
type StatusHandler struct {
	db       *gorm.DB
	presence Presence
	started  time.Time
}

// NewStatusHandler constructs a StatusHandler. presence may be nil.
func NewStatusHandler(db *gorm.DB, presence Presence) *StatusHandler {
	return &StatusHandler{db: db, presence: presence, started: time.Now()}
}

type statusCounts struct {
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Suspended int64 `json:"suspended"`
}

// Get returns database health, access counts by live status and connected users.
func (h *StatusHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	dbUp := dbutil.Ping(ctx, h.db)

	var counts statusCounts
	if dbUp {
		type row struct {
			Status models.AccessStatus
			Total  int64
		}
		var rows []row
		errCount := h.db.WithContext(ctx).Model(&models.RestaurantAccess{}).
			Select("status, COUNT(*) AS total").
			Where("status <> ?", models.AccessStatusInactive).
			Group("status").
			Scan(&rows).Error
		if errCount != nil {
			respond.Error(c, apierror.Internal("count access records failed", errCount))
			return
		}
		for _, r := range rows {
			switch r.Status {
			case models.AccessStatusPending:
				counts.Pending = r.Total
			case models.AccessStatusApproved:
				counts.Approved = r.Total
			case models.AccessStatusSuspended:
				counts.Suspended = r.Total
			}
		}
	}

	connected := 0
	if h.presence != nil {
		connected = h.presence.Users()
	}
	c.JSON(http.StatusOK, gin.H{
		"database":            dbUp,
		"siteName":            settings.SiteName(),
		"uptimeSeconds":       int64(time.Since(h.started).Seconds()),
		"accessRecords":       counts,
		"realtimeUsers":       connected,
		"settingsRefreshedAt": settings.DBConfigUpdatedAt(),
	})
}
