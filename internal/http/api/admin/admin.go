// Package admin registers routes reserved for global admin and root users.
package admin

import (
	"github.com/bitescout/BiteScoutAPI/internal/config"
	apihttp "github.com/bitescout/BiteScoutAPI/internal/http"
	"github.com/bitescout/BiteScoutAPI/internal/http/api/admin/handlers"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the admin route group. presence may be nil.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, presence handlers.Presence) {
	if r == nil || db == nil {
		return
	}
	admin := r.Group("/api/admin")
	admin.Use(apihttp.UserAuthMiddleware(db, jwtCfg), apihttp.RequireGlobalAdmin())

	statusHandler := handlers.NewStatusHandler(db, presence)
	admin.GET("/status", statusHandler.Get)

	settingsHandler := handlers.NewSettingsHandler(db)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Put)

	userHandler := handlers.NewUserHandler(db)
	admin.PATCH("/users/:id", userHandler.Update)
}
