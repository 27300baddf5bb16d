package handlers

import (
	"context"
	"net/http"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/gin-gonic/gin"
)

// RestaurantAccessHandler exposes the access workflow over REST.
type RestaurantAccessHandler struct {
	svc *access.Service
}

// NewRestaurantAccessHandler constructs a RestaurantAccessHandler.
func NewRestaurantAccessHandler(svc *access.Service) *RestaurantAccessHandler {
	return &RestaurantAccessHandler{svc: svc}
}

// requestAccessRequest is the body of POST /restaurant-access/:restaurantId.
type requestAccessRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=guest user moderator admin root"`
}

// updateRoleRequest is the body of PATCH .../update.
type updateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=guest user moderator admin root"`
}

// Request creates a pending access record.
func (h *RestaurantAccessHandler) Request(c *gin.Context) {
	var body requestAccessRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	rec, err := h.svc.RequestAccess(c.Request.Context(), getActor(c), body.UserID, c.Param("restaurantId"), models.Role(body.Role))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":          "Access request submitted",
		"restaurantAccess": rec,
	})
}

// ListByUser returns the records requested by :userId.
func (h *RestaurantAccessHandler) ListByUser(c *gin.Context) {
	userID := c.Param("userId")
	if err := requireSelfOrAdmin(getActor(c), userID); err != nil {
		respond.Error(c, err)
		return
	}
	rows, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurantAccesses": rows})
}

// ListByOwner returns the records targeting restaurants owned by :ownerId.
func (h *RestaurantAccessHandler) ListByOwner(c *gin.Context) {
	ownerID := c.Param("ownerId")
	if err := requireSelfOrAdmin(getActor(c), ownerID); err != nil {
		respond.Error(c, err)
		return
	}
	rows, err := h.svc.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurantAccesses": rows})
}

type transitionFunc func(ctx context.Context, accessID string, actor access.Actor) (models.RestaurantAccess, error)

func (h *RestaurantAccessHandler) transition(fn transitionFunc, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := fn(c.Request.Context(), c.Param("accessId"), getActor(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": message, "accessRecord": rec})
	}
}

// Grant approves a pending or suspended record.
func (h *RestaurantAccessHandler) Grant() gin.HandlerFunc {
	return h.transition(h.svc.GrantAccess, "Access granted")
}

// Suspend suspends an approved record.
func (h *RestaurantAccessHandler) Suspend() gin.HandlerFunc {
	return h.transition(h.svc.SuspendAccess, "Access suspended")
}

// Delete moves a record to innactive.
func (h *RestaurantAccessHandler) Delete() gin.HandlerFunc {
	return h.transition(h.svc.DeleteAccess, "Access removed")
}

// UpdateRole changes the role of an approved record.
func (h *RestaurantAccessHandler) UpdateRole(c *gin.Context) {
	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	rec, err := h.svc.UpdateRole(c.Request.Context(), c.Param("accessId"), getActor(c), models.Role(body.Role))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Access role updated", "accessRecord": rec})
}
