package handlers

import (
	"errors"
	"net/http"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the current user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", getActor(c).UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Error(c, apierror.NotFound("user not found"))
			return
		}
		respond.Error(c, apierror.Internal("query user failed", errFind))
		return
	}
	c.JSON(http.StatusOK, user)
}
