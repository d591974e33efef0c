package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/metrics"
)

// runSweeper periodically expires pending bookings whose alert deadline passed
// without the API's countdown catching them, e.g. while the API was down
func (w *Worker) runSweeper(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("Alert sweeper started",
		slog.Duration("interval", w.sweepInterval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Alert sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.sweep(ctx); err != nil {
				w.logger.Error("Alert sweep failed", slog.Any("error", err))
			}
		}
	}
}

// sweep expires one batch and announces each expiry to the booking owner
func (w *Worker) sweep(ctx context.Context) (int, error) {
	expired, err := w.storage.ExpireOverdueBookings(ctx, w.now().UTC(), w.sweepBatch)
	if err != nil {
		return 0, err
	}

	for _, b := range expired {
		metrics.IncreaseBookingAlertsExpired()

		ev, err := events.New(events.BookingExpired, "",
			"No vendor available", "No vendor accepted your "+b.Category+" booking in time",
			map[string]any{
				"booking_id": b.ID,
				"category":   b.Category,
				"status":     "expired",
				"amount":     b.Amount,
			})
		if err != nil {
			w.logger.Error("Failed to build expiry event", slog.String("booking_id", b.ID), slog.Any("error", err))
			continue
		}
		ev.To(b.UserID)

		body, err := json.Marshal(ev)
		if err != nil {
			w.logger.Error("Failed to marshal expiry event", slog.String("booking_id", b.ID), slog.Any("error", err))
			continue
		}

		if err := w.publisher.PublishWithRetry(ctx, ev.Type, ev.ID, body, events.ContentType); err != nil {
			metrics.IncreaseEventsPublished(ev.Type, metrics.ResultError)
			w.logger.Error("Failed to publish expiry event", slog.String("booking_id", b.ID), slog.Any("error", err))
			continue
		}
		metrics.IncreaseEventsPublished(ev.Type, metrics.ResultOK)

		w.logger.Info("Booking alert expired by sweeper", slog.String("booking_id", b.ID))
	}

	return len(expired), nil
}
