package dto

import (
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
)

type CreateBookingRequest struct {
	Category      string    `json:"category" binding:"required,service_category"`
	Address       string    `json:"address" binding:"required,max=500"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	Amount        int64     `json:"amount" binding:"required,gt=0,lte=100000000000"`
	PaymentMethod string    `json:"payment_method" binding:"required,payment_method"`
	Notes         string    `json:"notes" binding:"omitempty,max=1000"`
}

type ListBookingsRequest struct {
	Status   string `form:"status" binding:"omitempty,booking_status"`
	Category string `form:"category" binding:"omitempty,service_category"`
	PageRequest
}

type AssignWorkerRequest struct {
	WorkerID string `json:"worker_id" binding:"required,uuid"`
}

type BookingDTO struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	VendorID       string     `json:"vendor_id,omitempty"`
	WorkerID       string     `json:"worker_id,omitempty"`
	Category       string     `json:"category"`
	Address        string     `json:"address"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Notes          string     `json:"notes,omitempty"`
	Amount         int64      `json:"amount"`
	PaymentMethod  string     `json:"payment_method"`
	PaymentStatus  string     `json:"payment_status"`
	Status         string     `json:"status"`
	AlertExpiresAt time.Time  `json:"alert_expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ListBookingsResponse struct {
	Bookings   []BookingDTO `json:"bookings"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// BookingAlertDTO is an open offer shown to vendors with its countdown
type BookingAlertDTO struct {
	BookingID        string    `json:"booking_id"`
	Category         string    `json:"category"`
	Address          string    `json:"address"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Amount           int64     `json:"amount"`
	PaymentMethod    string    `json:"payment_method"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type ListAlertsResponse struct {
	Alerts []BookingAlertDTO `json:"alerts"`
}

func NewBookingDTO(b *model.Booking) BookingDTO {
	return BookingDTO{
		ID:             b.ID,
		UserID:         b.UserID,
		VendorID:       deref(b.VendorID),
		WorkerID:       deref(b.WorkerID),
		Category:       b.Category,
		Address:        b.Address,
		ScheduledAt:    b.ScheduledAt,
		Notes:          b.Notes,
		Amount:         b.Amount,
		PaymentMethod:  b.PaymentMethod,
		PaymentStatus:  b.PaymentStatus,
		Status:         b.Status,
		AlertExpiresAt: b.AlertExpiresAt,
		AcceptedAt:     b.AcceptedAt,
		AssignedAt:     b.AssignedAt,
		StartedAt:      b.StartedAt,
		CompletedAt:    b.CompletedAt,
		CancelledAt:    b.CancelledAt,
		CancelReason:   b.CancelReason,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// NewBookingAlertDTO computes the remaining countdown at now, rounded up to whole seconds
func NewBookingAlertDTO(b *model.Booking, now time.Time) BookingAlertDTO {
	remaining := b.AlertExpiresAt.Sub(now)
	seconds := 0
	if remaining > 0 {
		seconds = int((remaining + time.Second - 1) / time.Second)
	}

	return BookingAlertDTO{
		BookingID:        b.ID,
		Category:         b.Category,
		Address:          b.Address,
		ScheduledAt:      b.ScheduledAt,
		Amount:           b.Amount,
		PaymentMethod:    b.PaymentMethod,
		ExpiresAt:        b.AlertExpiresAt,
		RemainingSeconds: seconds,
	}
}
