package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"balancestudio/internal/middleware"
	"balancestudio/internal/repository"
	"balancestudio/internal/ws"
)

type NotificationHandler struct {
	notifications *repository.NotificationRepository
	events        *ws.Events
}

func NewNotificationHandler(notifications *repository.NotificationRepository, events *ws.Events) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, events: events}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit := intQuery(c, "limit", 50)
	unreadOnly := c.Query("unread_only") == "true"
	items, err := h.notifications.ListForUser(userID, limit, unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load notifications"})
		return
	}
	unread, err := h.notifications.UnreadCount(userID)
	if err != nil {
		unread = 0
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": unread})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	unread, err := h.notifications.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID := middleware.GetUserID(c)
	if err := h.notifications.MarkRead(userID, uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	h.pushCounts(userID)
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.notifications.MarkAllRead(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notifications"})
		return
	}
	h.pushCounts(userID)
	c.JSON(http.StatusOK, gin.H{"message": "all marked read"})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID := middleware.GetUserID(c)
	if err := h.notifications.Delete(userID, uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	h.pushCounts(userID)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *NotificationHandler) pushCounts(userID uint) {
	unread, err := h.notifications.UnreadCount(userID)
	if err != nil {
		return
	}
	h.events.NotifyNotificationRefresh(userID, unread)
}
