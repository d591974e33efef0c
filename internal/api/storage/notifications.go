package storage

import (
	"context"
	"fmt"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

const notificationColumns = `
	id, recipient_id, event_id, type, title, message, data::text AS data, is_read, created_at`

func (s *Storage) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, page Page) ([]model.Notification, error) {
	var f filterQuery
	f.add("recipient_id = ?", recipientID)
	if unreadOnly {
		f.add("NOT is_read")
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + f.paginate(page)

	var notifications []model.Notification
	if err := s.db.SelectContext(ctx, &notifications, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (s *Storage) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`

	if err := s.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead marks one of the recipient's notifications read; marking twice is not an error
func (s *Storage) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`

	result, err := s.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotificationNotFound
	}

	return nil
}

func (s *Storage) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`

	result, err := s.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
