package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	internalsettings "github.com/bitescout/BiteScoutAPI/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsHandler manages DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// putSettingRequest is the body of PUT /api/admin/settings/:key.
type putSettingRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// List returns every stored setting.
func (h *SettingsHandler) List(c *gin.Context) {
	rows := make([]models.Setting, 0)
	if errFind := h.db.WithContext(c.Request.Context()).Order("key ASC").Find(&rows).Error; errFind != nil {
		respond.Error(c, apierror.Internal("list settings failed", errFind))
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": rows})
}

// Put upserts a setting and refreshes the in-memory snapshot.
func (h *SettingsHandler) Put(c *gin.Context) {
	var body putSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	row, errSave := internalsettings.Save(c.Request.Context(), h.db, c.Param("key"), body.Value)
	if errSave != nil {
		if errors.Is(errSave, internalsettings.ErrUnknownKey) {
			respond.Error(c, apierror.Validation("unknown setting key", map[string]string{"key": c.Param("key")}))
			return
		}
		respond.Error(c, apierror.Internal("save setting failed", errSave))
		return
	}
	c.JSON(http.StatusOK, row)
}
