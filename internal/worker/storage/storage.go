package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/worker/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ActiveVendorIDs returns the active vendors serving category
func (s *Storage) ActiveVendorIDs(ctx context.Context, category string) ([]string, error) {
	query := `
		SELECT id
		FROM users
		WHERE role = 'vendor'
		  AND is_active
		  AND $1 = ANY(service_categories)
		ORDER BY id
	`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, category); err != nil {
		return nil, fmt.Errorf("failed to list vendors for category: %w", err)
	}

	return ids, nil
}

// InsertNotifications writes one inbox row per recipient. Rows already written
// for the same event are skipped, as are recipients that no longer exist, so a
// redelivered event is harmless. Returns the number of rows inserted.
func (s *Storage) InsertNotifications(ctx context.Context, ev *events.Event, recipients []string) (int64, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO notifications (id, recipient_id, event_id, type, title, message, data, created_at)
		SELECT r.id, r.recipient_id, $3, $4, $5, $6, $7::jsonb, $8
		FROM unnest($1::uuid[], $2::uuid[]) AS r(id, recipient_id)
		JOIN users u ON u.id = r.recipient_id
		ON CONFLICT (event_id, recipient_id) DO NOTHING
	`

	ids := make([]string, len(recipients))
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	data := string(ev.Data)
	if data == "" {
		data = "{}"
	}

	result, err := s.db.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(recipients),
		ev.ID, ev.Type, ev.Title, ev.Message, data, ev.OccurredAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notifications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if skipped := int64(len(recipients)) - rowsAffected; skipped > 0 {
		s.logger.Debug("Notifications skipped (duplicate or unknown recipient)",
			slog.String("event_id", ev.ID),
			slog.Int64("skipped", skipped),
		)
	}

	return rowsAffected, nil
}

// ExpireOverdueBookings moves pending bookings whose alert deadline has passed
// to expired. SKIP LOCKED lets several workers sweep without blocking each other.
func (s *Storage) ExpireOverdueBookings(ctx context.Context, now time.Time, limit int) ([]domain.ExpiredBooking, error) {
	query := `
		UPDATE bookings
		SET status = 'expired',
		    updated_at = $1
		WHERE id IN (
			SELECT id
			FROM bookings
			WHERE status = 'pending'
			  AND alert_expires_at <= $1
			ORDER BY alert_expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		  AND status = 'pending'
		RETURNING id, user_id, category, amount
	`

	var expired []domain.ExpiredBooking
	if err := s.db.SelectContext(ctx, &expired, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to expire overdue bookings: %w", err)
	}

	if len(expired) > 0 {
		s.logger.Info("Expired overdue bookings",
			slog.Int("count", len(expired)),
		)
	}

	return expired, nil
}
