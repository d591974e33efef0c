package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the marketplace topic exchange
const (
	BookingCreated   = "booking.created"
	BookingAccepted  = "booking.accepted"
	BookingAssigned  = "booking.assigned"
	BookingDeclined  = "booking.declined"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
	BookingPaid      = "booking.paid"

	ScrapCreated   = "scrap.created"
	ScrapAccepted  = "scrap.accepted"
	ScrapCompleted = "scrap.completed"
	ScrapCancelled = "scrap.cancelled"

	WalletCredited = "wallet.credited"
	WalletDebited  = "wallet.debited"

	AccountDeactivated = "account.deactivated"
)

const ContentType = "application/json"

var (
	ErrMissingType     = errors.New("event type is required")
	ErrMissingAudience = errors.New("event has neither recipients nor category")
)

// Event is the message body published to the broker and consumed by the worker
type Event struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id,omitempty"`
	Recipients []string        `json:"recipients,omitempty"`
	Category   string          `json:"category,omitempty"`
	Title      string          `json:"title"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh id; data is marshalled into Data
func New(eventType, actorID, title, message string, data any) (*Event, error) {
	ev := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		Title:      title,
		Message:    message,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event data: %w", err)
		}
		ev.Data = raw
	}

	return ev, nil
}

// To sets explicit recipients, skipping empty ids and duplicates
func (e *Event) To(userIDs ...string) *Event {
	for _, id := range userIDs {
		if id == "" || slices.Contains(e.Recipients, id) {
			continue
		}
		e.Recipients = append(e.Recipients, id)
	}
	return e
}

// ToCategory addresses every active vendor serving category
func (e *Event) ToCategory(category string) *Event {
	e.Category = category
	return e
}

func (e *Event) Validate() error {
	if e.Type == "" {
		return ErrMissingType
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid event id %q: %w", e.ID, err)
	}
	if len(e.Recipients) == 0 && e.Category == "" {
		return ErrMissingAudience
	}
	return nil
}

// Decode parses and validates a message body
func Decode(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
