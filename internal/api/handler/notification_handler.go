package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/gin-gonic/gin"
)

// NotificationHandler handles the caller's inbox
type NotificationHandler struct {
	logger        *slog.Logger
	notifications NotificationStore
}

func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger:        deps.Logger,
		notifications: deps.Notifications,
	}
}

// ListNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	var req dto.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := pageFromRequest(req.PageRequest)
	if err != nil {
		badRequest(c, "invalid cursor")
		return
	}

	items, err := h.notifications.ListNotifications(c.Request.Context(), p.UserID, req.Unread, page)
	if err != nil {
		respondError(c, h.logger, "Failed to list notifications", err)
		return
	}

	items, next := trimPage(items, page, func(n model.Notification) (time.Time, string) { return n.CreatedAt, n.ID })

	resp := dto.ListNotificationsResponse{
		Notifications: make([]dto.NotificationDTO, len(items)),
		NextCursor:    next,
	}
	for i := range items {
		resp.Notifications[i] = dto.NewNotificationDTO(&items[i])
	}

	c.JSON(http.StatusOK, resp)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	n, err := h.notifications.CountUnread(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to count notifications", err)
		return
	}

	c.JSON(http.StatusOK, dto.UnreadCountResponse{Unread: n})
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), p.UserID); err != nil {
		respondError(c, h.logger, "Failed to mark notification read", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	n, err := h.notifications.MarkAllRead(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, "Failed to mark notifications read", err)
		return
	}

	c.JSON(http.StatusOK, dto.MarkAllReadResponse{Updated: n})
}
