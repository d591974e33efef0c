package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `
	id, user_id, vendor_id, worker_id, category, address, scheduled_at, notes,
	amount, payment_method, payment_status, status, alert_expires_at,
	accepted_at, assigned_at, started_at, completed_at, cancelled_at,
	cancel_reason, created_at, updated_at`

func (s *Storage) CreateBooking(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, user_id, category, address, scheduled_at, notes, amount,
			payment_method, payment_status, status, alert_expires_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		b.ID,
		b.UserID,
		b.Category,
		b.Address,
		b.ScheduledAt,
		b.Notes,
		b.Amount,
		b.PaymentMethod,
		b.PaymentStatus,
		b.Status,
		b.AlertExpiresAt,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return getBooking(ctx, s.db, id, false)
}

func getBooking(ctx context.Context, q queryer, id string, forUpdate bool) (*model.Booking, error) {
	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	if err := q.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &b, nil
}

type BookingFilter struct {
	UserID   string
	VendorID string
	WorkerID string
	Status   string
	Category string
	Page
}

func (s *Storage) ListBookings(ctx context.Context, filter BookingFilter) ([]model.Booking, error) {
	var f filterQuery

	if filter.UserID != "" {
		f.add("user_id = ?", filter.UserID)
	}
	if filter.VendorID != "" {
		f.add("vendor_id = ?", filter.VendorID)
	}
	if filter.WorkerID != "" {
		f.add("worker_id = ?", filter.WorkerID)
	}
	if filter.Status != "" {
		f.add("status = ?", filter.Status)
	}
	if filter.Category != "" {
		f.add("category = ?", filter.Category)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + f.paginate(filter.Page)

	var bookings []model.Booking
	if err := s.db.SelectContext(ctx, &bookings, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, nil
}

// ListOpenAlerts returns pending bookings in the given categories whose alert is still
// running and which vendorID has not rejected, soonest deadline first
func (s *Storage) ListOpenAlerts(ctx context.Context, vendorID string, categories []string, now time.Time) ([]model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings b
		WHERE b.status = $1
			AND b.alert_expires_at > $2
			AND b.category = ANY($3)
			AND NOT EXISTS (
				SELECT 1 FROM booking_rejections r
				WHERE r.booking_id = b.id AND r.vendor_id = $4
			)
		ORDER BY b.alert_expires_at ASC, b.id ASC
	`

	var bookings []model.Booking
	err := s.db.SelectContext(ctx, &bookings, query,
		domain.BookingStatusPending, now, pq.Array(categories), vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}

	return bookings, nil
}

// AcceptBooking claims a pending booking for vendorID. Only one vendor can win:
// the update is conditional on the booking still being pending and its alert running.
func (s *Storage) AcceptBooking(ctx context.Context, id, vendorID string, now time.Time) (*model.Booking, error) {
	var b model.Booking
	query := `
		UPDATE bookings
		SET status = $1, vendor_id = $2, accepted_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5 AND alert_expires_at > $3
		RETURNING ` + bookingColumns

	err := s.db.GetContext(ctx, &b, query,
		domain.BookingStatusAccepted, vendorID, now, id, domain.BookingStatusPending)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to accept booking: %w", err)
	}

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case current.Status == domain.BookingStatusExpired,
		current.Status == domain.BookingStatusPending && !current.AlertExpiresAt.After(now):
		return nil, domain.ErrAlertExpired
	case current.Status == domain.BookingStatusCancelled:
		return nil, domain.ErrInvalidTransition
	default:
		return nil, domain.ErrAlreadyAccepted
	}
}

// RejectBooking records that vendorID passed on the booking; repeated calls are no-ops
func (s *Storage) RejectBooking(ctx context.Context, bookingID, vendorID string) error {
	query := `
		INSERT INTO booking_rejections (booking_id, vendor_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, bookingID, vendorID); err != nil {
		return fmt.Errorf("failed to reject booking: %w", err)
	}

	return nil
}

// AssignWorker moves an accepted booking owned by vendorID to assigned
func (s *Storage) AssignWorker(ctx context.Context, id, vendorID, workerID string, now time.Time) (*model.Booking, error) {
	return s.updateBooking(ctx, id,
		`status = ?, worker_id = ?, assigned_at = ?`,
		[]interface{}{domain.BookingStatusAssigned, workerID, now},
		`vendor_id = ? AND status = ?`,
		[]interface{}{vendorID, domain.BookingStatusAccepted},
		now)
}

// DeclineAssignment hands an assigned booking back to its vendor
func (s *Storage) DeclineAssignment(ctx context.Context, id, workerID string, now time.Time) (*model.Booking, error) {
	return s.updateBooking(ctx, id,
		`status = ?, worker_id = NULL, assigned_at = NULL`,
		[]interface{}{domain.BookingStatusAccepted},
		`worker_id = ? AND status = ?`,
		[]interface{}{workerID, domain.BookingStatusAssigned},
		now)
}

func (s *Storage) StartBooking(ctx context.Context, id, workerID string, now time.Time) (*model.Booking, error) {
	return s.updateBooking(ctx, id,
		`status = ?, started_at = ?`,
		[]interface{}{domain.BookingStatusInProgress, now},
		`worker_id = ? AND status = ?`,
		[]interface{}{workerID, domain.BookingStatusAssigned},
		now)
}

func (s *Storage) CompleteBooking(ctx context.Context, id string, now time.Time) (*model.Booking, error) {
	return s.updateBooking(ctx, id,
		`status = ?, completed_at = ?`,
		[]interface{}{domain.BookingStatusCompleted, now},
		`status = ?`,
		[]interface{}{domain.BookingStatusInProgress},
		now)
}

// CancelBooking cancels the booking if its current status is one of from
func (s *Storage) CancelBooking(ctx context.Context, id string, from []string, reason string, now time.Time) (*model.Booking, error) {
	return s.updateBooking(ctx, id,
		`status = ?, cancel_reason = ?, cancelled_at = ?`,
		[]interface{}{domain.BookingStatusCancelled, reason, now},
		`status = ANY(?)`,
		[]interface{}{pq.Array(from)},
		now)
}

// ExpireBooking marks a pending booking expired once its alert deadline has passed.
// It reports false when the booking was accepted or cancelled in the meantime.
func (s *Storage) ExpireBooking(ctx context.Context, id string, now time.Time) (*model.Booking, bool, error) {
	b, err := s.updateBooking(ctx, id,
		`status = ?`,
		[]interface{}{domain.BookingStatusExpired},
		`status = ? AND alert_expires_at <= ?`,
		[]interface{}{domain.BookingStatusPending, now},
		now)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// MarkBookingPaid records a cash payment collected by the accepting vendor
func (s *Storage) MarkBookingPaid(ctx context.Context, id, vendorID string, now time.Time) (*model.Booking, error) {
	b, err := s.updateBooking(ctx, id,
		`payment_status = ?, payment_method = ?`,
		[]interface{}{domain.PaymentStatusPaid, domain.PaymentMethodCash},
		`vendor_id = ? AND status = ? AND payment_status = ?`,
		[]interface{}{vendorID, domain.BookingStatusCompleted, domain.PaymentStatusUnpaid},
		now)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil, s.paymentConflict(ctx, id)
	}
	return b, err
}

// PayBookingFromWallet settles a completed booking: the owner's wallet is debited the
// full amount, the vendor is credited the amount less commission. All in one transaction.
func (s *Storage) PayBookingFromWallet(ctx context.Context, id, userID string, commissionPercent int, now time.Time) (*model.Booking, error) {
	var paid model.Booking

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := getBooking(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return domain.ErrForbidden
		}
		if b.PaymentStatus == domain.PaymentStatusPaid {
			return domain.ErrAlreadyPaid
		}
		if b.Status != domain.BookingStatusCompleted || b.VendorID == nil {
			return domain.ErrInvalidTransition
		}

		payout := b.Amount - domain.Commission(b.Amount, commissionPercent)
		ref := Reference{Type: ReferenceBooking, ID: b.ID}

		if _, _, err := transfer(ctx, tx, b.UserID, *b.VendorID, b.Amount, payout, "booking payment", ref); err != nil {
			return err
		}

		query := `
			UPDATE bookings
			SET payment_status = $1, payment_method = $2, updated_at = $3
			WHERE id = $4
			RETURNING ` + bookingColumns

		if err := tx.GetContext(ctx, &paid, query,
			domain.PaymentStatusPaid, domain.PaymentMethodWallet, now, id); err != nil {
			return fmt.Errorf("failed to mark booking paid: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &paid, nil
}

func (s *Storage) paymentConflict(ctx context.Context, id string) error {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if b.PaymentStatus == domain.PaymentStatusPaid {
		return domain.ErrAlreadyPaid
	}
	return domain.ErrInvalidTransition
}

// updateBooking runs a conditional UPDATE and returns the updated row.
// No matching row means either the booking does not exist or its state forbids the change.
func (s *Storage) updateBooking(
	ctx context.Context,
	id string,
	set string, setArgs []interface{},
	cond string, condArgs []interface{},
	now time.Time,
) (*model.Booking, error) {
	var f filterQuery
	f.add(set+", updated_at = ?", append(setArgs, now)...)
	setSQL := f.conds[0]

	f.conds = nil
	f.add("id = ?", id)
	f.add(cond, condArgs...)

	query := `UPDATE bookings SET ` + setSQL + f.where() + ` RETURNING ` + bookingColumns

	var b model.Booking
	err := s.db.GetContext(ctx, &b, query, f.args...)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if _, err := s.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrInvalidTransition
}

// CountBookingsByStatus aggregates bookings for the admin dashboard
func (s *Storage) CountBookingsByStatus(ctx context.Context) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	query := `SELECT status, COUNT(*) AS count FROM bookings GROUP BY status ORDER BY status`

	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	return counts, nil
}

// ListPendingBookings returns bookings still waiting for a vendor, used to re-arm
// alert countdowns after a restart
func (s *Storage) ListPendingBookings(ctx context.Context, limit int) ([]model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = $1
		ORDER BY alert_expires_at ASC
		LIMIT $2
	`

	var bookings []model.Booking
	if err := s.db.SelectContext(ctx, &bookings, query, domain.BookingStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending bookings: %w", err)
	}

	return bookings, nil
}
