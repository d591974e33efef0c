package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Events pushed to connected clients
const (
	EventBookingAlert       = "booking:alert"
	EventBookingAlertClosed = "booking:alert:closed"
	EventBookingUpdated     = "booking:updated"
	EventScrapNew           = "scrap:new"
	EventScrapUpdated       = "scrap:updated"
	EventWalletUpdated      = "wallet:updated"
	EventNotification       = "notification"
)

// Envelope is the frame written to every transport
type Envelope struct {
	Event  string    `json:"event"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}

func encode(event string, data any, now time.Time) ([]byte, error) {
	b, err := json.Marshal(Envelope{Event: event, Data: data, SentAt: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	return b, nil
}

func UserRoom(userID string) string {
	return "user:" + userID
}

func RoleRoom(role string) string {
	return "role:" + role
}

func CategoryRoom(category string) string {
	return "category:" + category
}
