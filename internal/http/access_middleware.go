// Package http holds the gin middlewares shared by every route group.
package http

import (
	"errors"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by UserAuthMiddleware.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// UserAuthMiddleware validates the bearer JWT, loads the user and stores its
// id and global role in the context. The role is read from the database, not
// the token, so demotions take effect immediately.
func UserAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := security.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			respond.Error(c, apierror.Authentication("missing bearer token"))
			return
		}
		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			if errors.Is(errJWT, security.ErrExpiredToken) {
				respond.Error(c, apierror.Authentication("token expired"))
				return
			}
			respond.Error(c, apierror.Authentication("invalid token"))
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				respond.Error(c, apierror.Authentication("user not found"))
				return
			}
			respond.Error(c, apierror.Internal("load user failed", errFind))
			return
		}
		if user.Disabled {
			respond.Error(c, apierror.Authorization("user disabled"))
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUserRole, user.Role)
		c.Next()
	}
}

// RequireGlobalAdmin lets only admin and root users through. It must run after UserAuthMiddleware.
func RequireGlobalAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentActor(c).IsGlobalAdmin() {
			respond.Error(c, apierror.Authorization("admin role required"))
			return
		}
		c.Next()
	}
}

// CurrentActor returns the authenticated caller.
func CurrentActor(c *gin.Context) access.Actor {
	actor := access.Actor{}
	if v, ok := c.Get(ContextUserID); ok {
		actor.UserID, _ = v.(string)
	}
	if v, ok := c.Get(ContextUserRole); ok {
		actor.Role, _ = v.(models.Role)
	}
	return actor
}
