package model

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID                string         `db:"id"`
	Email             string         `db:"email"`
	PasswordHash      string         `db:"password_hash"`
	Name              string         `db:"name"`
	Phone             string         `db:"phone"`
	Role              string         `db:"role"`
	VendorID          *string        `db:"vendor_id"`
	BusinessName      *string        `db:"business_name"`
	ServiceCategories pq.StringArray `db:"service_categories"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type Booking struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	VendorID       *string    `db:"vendor_id"`
	WorkerID       *string    `db:"worker_id"`
	Category       string     `db:"category"`
	Address        string     `db:"address"`
	ScheduledAt    time.Time  `db:"scheduled_at"`
	Notes          string     `db:"notes"`
	Amount         int64      `db:"amount"`
	PaymentMethod  string     `db:"payment_method"`
	PaymentStatus  string     `db:"payment_status"`
	Status         string     `db:"status"`
	AlertExpiresAt time.Time  `db:"alert_expires_at"`
	AcceptedAt     *time.Time `db:"accepted_at"`
	AssignedAt     *time.Time `db:"assigned_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
	CancelReason   string     `db:"cancel_reason"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type ScrapItem struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	VendorID          *string        `db:"vendor_id"`
	Category          string         `db:"category"`
	Description       string         `db:"description"`
	EstimatedWeightKg float64        `db:"estimated_weight_kg"`
	EstimatedPrice    int64          `db:"estimated_price"`
	FinalWeightKg     *float64       `db:"final_weight_kg"`
	FinalPrice        *int64         `db:"final_price"`
	PayoutMethod      *string        `db:"payout_method"`
	PickupAddress     string         `db:"pickup_address"`
	PickupAt          time.Time      `db:"pickup_at"`
	Images            pq.StringArray `db:"images"`
	Status            string         `db:"status"`
	CancelReason      string         `db:"cancel_reason"`
	AcceptedAt        *time.Time     `db:"accepted_at"`
	CompletedAt       *time.Time     `db:"completed_at"`
	CancelledAt       *time.Time     `db:"cancelled_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type Wallet struct {
	UserID    string    `db:"user_id"`
	Balance   int64     `db:"balance"`
	UpdatedAt time.Time `db:"updated_at"`
}

type WalletTransaction struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Type          string    `db:"type"`
	Amount        int64     `db:"amount"`
	BalanceAfter  int64     `db:"balance_after"`
	Reason        string    `db:"reason"`
	ReferenceType string    `db:"reference_type"`
	ReferenceID   string    `db:"reference_id"`
	CreatedAt     time.Time `db:"created_at"`
}

type Notification struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	EventID     string    `db:"event_id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	Data        string    `db:"data"` // JSON object
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

// StatusCount is one row of a GROUP BY status aggregate
type StatusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}
