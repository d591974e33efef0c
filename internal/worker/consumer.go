package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// startMessageDispatcher decodes deliveries and hands them to the worker pool.
// It reports true when the broker closed the delivery channel.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return false

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return true
			}

			ev, err := events.Decode(delivery.Body)
			if err != nil {
				err = fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
				w.logger.Error("Failed to decode event",
					slog.String("routing_key", delivery.RoutingKey),
					slog.String("message_id", delivery.MessageId),
					slog.Any("error", err),
				)
				metrics.IncreaseEventsConsumed(delivery.RoutingKey, metrics.ResultDropped)
				// Malformed messages go straight to the DLQ
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			msg := &domain.EventMessage{Event: ev, Delivery: delivery}

			select {
			case w.eventsChan <- msg:
				w.logger.Debug("Event dispatched to worker pool",
					slog.String("event_id", ev.ID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching event")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return false
			}
		}
	}
}
