package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
)

// Broker is the durable side of publishing
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey, messageID string, body []byte, contentType string) error
}

// Broadcaster pushes frames to connected clients
type Broadcaster interface {
	Publish(rooms []string, event string, data any) int
}

// Publisher sends domain events to the broker and mirrors them to the hub.
// The database write has already happened when Publish is called, so failures
// are logged and counted but never returned to the caller.
type Publisher struct {
	broker  Broker
	hub     Broadcaster
	logger  *slog.Logger
	timeout time.Duration
}

func NewPublisher(broker Broker, hub Broadcaster, logger *slog.Logger, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		broker:  broker,
		hub:     hub,
		logger:  logger,
		timeout: timeout,
	}
}

// notificationFrame is what clients get on the "notification" event
type notificationFrame struct {
	EventID string          `json:"event_id"`
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Publish delivers ev to the broker and pushes a notification frame to each
// explicit recipient's room. The request context's cancellation is ignored so a
// client hanging up does not lose the event.
func (p *Publisher) Publish(ctx context.Context, ev *Event) {
	logger := p.logger.With(slog.String("event_id", ev.ID), slog.String("event_type", ev.Type))

	if err := ev.Validate(); err != nil {
		logger.Error("Refusing to publish invalid event", slog.Any("error", err))
		metrics.IncreaseEventsPublished(ev.Type, metrics.ResultDropped)
		return
	}

	if len(ev.Recipients) > 0 {
		rooms := make([]string, len(ev.Recipients))
		for i, id := range ev.Recipients {
			rooms[i] = realtime.UserRoom(id)
		}
		p.hub.Publish(rooms, realtime.EventNotification, notificationFrame{
			EventID: ev.ID,
			Type:    ev.Type,
			Title:   ev.Title,
			Message: ev.Message,
			Data:    ev.Data,
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Failed to marshal event", slog.Any("error", err))
		metrics.IncreaseEventsPublished(ev.Type, metrics.ResultError)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.broker.PublishWithRetry(pubCtx, ev.Type, ev.ID, body, ContentType); err != nil {
		logger.Error("Failed to publish event", slog.Any("error", err))
		metrics.IncreaseEventsPublished(ev.Type, metrics.ResultError)
		return
	}

	metrics.IncreaseEventsPublished(ev.Type, metrics.ResultOK)
	logger.Debug("Event published")
}

// Broadcast pushes a realtime-only frame to rooms
func (p *Publisher) Broadcast(rooms []string, event string, data any) {
	n := p.hub.Publish(rooms, event, data)
	p.logger.Debug("Realtime frame broadcast",
		slog.String("event", event),
		slog.Any("rooms", rooms),
		slog.Int("delivered", n),
	)
}
