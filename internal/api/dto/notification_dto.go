package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

type ListNotificationsRequest struct {
	Unread bool `form:"unread"`
	PageRequest
}

type NotificationDTO struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	NextCursor    string            `json:"next_cursor,omitempty"`
}

type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

func NewNotificationDTO(n *model.Notification) NotificationDTO {
	var data json.RawMessage
	if n.Data != "" && n.Data != "{}" && json.Valid([]byte(n.Data)) {
		data = json.RawMessage(n.Data)
	}

	return NotificationDTO{
		ID:        n.ID,
		EventID:   n.EventID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
