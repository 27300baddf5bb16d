package handlers

import (
	"errors"
	"net/http"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	apihttp "github.com/bitescout/BiteScoutAPI/internal/http"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler lets admins change a user's global role or disable the account.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// updateUserRequest captures optional user updates.
type updateUserRequest struct {
	Role     *string `json:"role" binding:"omitempty,oneof=guest user moderator admin root"`
	Disabled *bool   `json:"disabled"`
}

// Update applies role and disabled changes. Only root may grant or revoke root.
func (h *UserHandler) Update(c *gin.Context) {
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	actor := apihttp.CurrentActor(c)

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Error(c, apierror.NotFound("user not found"))
			return
		}
		respond.Error(c, apierror.Internal("query user failed", errFind))
		return
	}

	updates := map[string]any{}
	if body.Role != nil {
		role := models.Role(*body.Role)
		if (role == models.RoleRoot || user.Role == models.RoleRoot) && actor.Role != models.RoleRoot {
			respond.Error(c, apierror.Authorization("only root may change root membership"))
			return
		}
		updates["role"] = role
	}
	if body.Disabled != nil {
		if user.ID == actor.UserID && *body.Disabled {
			respond.Error(c, apierror.Validation("cannot disable yourself", nil))
			return
		}
		updates["disabled"] = *body.Disabled
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, user)
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errUpdate != nil {
		respond.Error(c, apierror.Internal("update user failed", errUpdate))
		return
	}
	if errReload := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", user.ID).Error; errReload != nil {
		respond.Error(c, apierror.Internal("reload user failed", errReload))
		return
	}
	c.JSON(http.StatusOK, user)
}
