package app

import (
	"net/http"
	"strconv"

	"relgraph/internal/service"
	"relgraph/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotifications handles listing the current user's notifications
// GET /api/v1/notifications?limit=20&offset=0
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := h.notificationService.GetNotificationsByUserID(userID.(string), limit, offset)
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve notifications", nil)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notifications retrieved", gin.H{"notifications": notifications})
}

// GetUnreadCount handles the unread badge count
// GET /api/v1/notifications/unread/count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	count, err := h.notificationService.GetUnreadCount(userID.(string))
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, "Failed to count notifications", nil)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Unread count retrieved", gin.H{"count": count})
}

// MarkAsRead handles marking one notification as read
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	id := c.Param("id")
	if id == "" {
		util.BadRequest(c, "Notification ID is required")
		return
	}

	if err := h.notificationService.MarkAsRead(id, userID.(string)); err != nil {
		util.NotFound(c, "Notification not found")
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notification marked as read", nil)
}

// MarkAllAsRead handles marking every notification as read
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.notificationService.MarkAllAsRead(userID.(string)); err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, "Failed to mark notifications as read", nil)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "All notifications marked as read", nil)
}
