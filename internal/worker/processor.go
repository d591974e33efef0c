package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
)

// processEvent writes the inbox rows for one event
func (w *Worker) processEvent(ctx context.Context, ev *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, w.eventTimeout)
	defer cancel()

	recipients, err := w.resolveRecipients(ctx, ev)
	if err != nil {
		return domain.Transient("resolve recipients", err)
	}

	if len(recipients) == 0 {
		w.logger.Debug("Event has no recipients",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.Type),
		)
		return nil
	}

	inserted, err := w.storage.InsertNotifications(ctx, ev, recipients)
	if err != nil {
		return domain.Transient("store notifications", err)
	}

	w.logger.Info("Notifications stored",
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
		slog.Int("recipients", len(recipients)),
		slog.Int64("inserted", inserted),
	)

	return nil
}

// resolveRecipients returns the explicit recipients plus every active vendor of
// the event's category, minus the actor
func (w *Worker) resolveRecipients(ctx context.Context, ev *events.Event) ([]string, error) {
	recipients := slices.Clone(ev.Recipients)

	if ev.Category != "" {
		vendors, err := w.storage.ActiveVendorIDs(ctx, ev.Category)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve category recipients: %w", err)
		}
		for _, id := range vendors {
			if !slices.Contains(recipients, id) {
				recipients = append(recipients, id)
			}
		}
	}

	return slices.DeleteFunc(recipients, func(id string) bool {
		return id == "" || id == ev.ActorID
	}), nil
}
