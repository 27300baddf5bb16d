// Package front registers the user-facing REST routes.
package front

import (
	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	apihttp "github.com/bitescout/BiteScoutAPI/internal/http"
	"github.com/bitescout/BiteScoutAPI/internal/http/api/front/handlers"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the front routes are built from.
type Deps struct {
	DB            *gorm.DB
	JWT           config.JWTConfig
	Access        *access.Service
	Notifications *notifications.Store
	RateLimiter   *apihttp.RateLimiter // nil disables rate limiting
	Realtime      gin.HandlerFunc      // nil leaves /ws unregistered
}

// RegisterFrontRoutes registers public and authenticated routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Realtime != nil {
		r.GET("/ws", deps.Realtime)
	}

	api := r.Group("/api")
	api.GET("/config", handlers.GetPublicConfig)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	userAuth := apihttp.UserAuthMiddleware(deps.DB, deps.JWT)

	authed := api.Group("")
	authed.Use(userAuth)

	profileHandler := handlers.NewProfileHandler(deps.DB)
	authed.GET("/me", profileHandler.Get)

	restaurantHandler := handlers.NewRestaurantHandler(deps.DB)
	authed.POST("/restaurants", restaurantHandler.Create)
	authed.GET("/restaurants", restaurantHandler.List)
	authed.GET("/restaurants/:id", restaurantHandler.Get)

	accessHandler := handlers.NewRestaurantAccessHandler(deps.Access)
	limit := deps.RateLimiter.Middleware()
	accessGroup := r.Group("/restaurant-access")
	accessGroup.Use(userAuth)
	accessGroup.POST("/:restaurantId", limit, accessHandler.Request)
	accessGroup.GET("/user/:userId", accessHandler.ListByUser)
	accessGroup.GET("/owner/:ownerId", accessHandler.ListByOwner)
	accessGroup.PATCH("/access/:accessId/grant", limit, accessHandler.Grant())
	accessGroup.PATCH("/access/:accessId/suspend", limit, accessHandler.Suspend())
	accessGroup.PATCH("/access/:accessId/delete", limit, accessHandler.Delete())
	accessGroup.PATCH("/access/:accessId/update", limit, accessHandler.UpdateRole)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	notificationGroup := r.Group("/notifications")
	notificationGroup.Use(userAuth)
	notificationGroup.GET("/:userId", notificationHandler.List)
	notificationGroup.GET("/:userId/unread-count", notificationHandler.UnreadCount)
	notificationGroup.PATCH("/:userId/read-all", notificationHandler.MarkAllRead)
	notificationGroup.PATCH("/:userId/:notificationId/read", notificationHandler.MarkRead)
}
