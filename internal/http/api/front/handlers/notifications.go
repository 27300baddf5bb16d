package handlers

import (
	"net/http"

	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	"github.com/gin-gonic/gin"
)

// NotificationHandler serves a user's notification inbox.
type NotificationHandler struct {
	store *notifications.Store
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(store *notifications.Store) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List returns :userId's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.Param("userId")
	if err := requireSelfOrAdmin(getActor(c), userID); err != nil {
		respond.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respond.Error(c, err)
		return
	}
	unread, err := queryBool(c, "unread")
	if err != nil {
		respond.Error(c, err)
		return
	}
	rows, err := h.store.ListByUser(c.Request.Context(), userID, notifications.ListOptions{Limit: limit, UnreadOnly: unread})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// UnreadCount returns how many of :userId's notifications are unread.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.Param("userId")
	if err := requireSelfOrAdmin(getActor(c), userID); err != nil {
		respond.Error(c, err)
		return
	}
	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead flips one notification to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.Param("userId")
	if err := requireSelf(getActor(c), userID); err != nil {
		respond.Error(c, err)
		return
	}
	row, err := h.store.MarkRead(c.Request.Context(), c.Param("notificationId"), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// MarkAllRead flips every unread notification of :userId.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.Param("userId")
	if err := requireSelf(getActor(c), userID); err != nil {
		respond.Error(c, err)
		return
	}
	count, err := h.store.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "count": count})
}
