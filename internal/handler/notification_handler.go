package handler

import (
	"net/http"
	"strconv"

	"refbook/internal/middleware"
	"refbook/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List returns the caller's notifications, newest first.
// GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.svc.List(c.Request.Context(), middleware.GetAccountID(c), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"notifications": list, "count": len(list)}})
}

// MarkRead marks one of the caller's notifications read.
// PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ok, err := h.svc.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetAccountID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "Notification not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification marked as read"})
}
