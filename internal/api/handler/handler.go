package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, filter storage.UserFilter) ([]model.User, error)
	SetUserActive(ctx context.Context, id string, active bool) (*model.User, error)
	DeactivateWorker(ctx context.Context, vendorID, workerID string) error
	GetActiveWorker(ctx context.Context, vendorID, workerID string) (*model.User, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, filter storage.BookingFilter) ([]model.Booking, error)
	ListOpenAlerts(ctx context.Context, vendorID string, categories []string, now time.Time) ([]model.Booking, error)
	ListPendingBookings(ctx context.Context, limit int) ([]model.Booking, error)
	AcceptBooking(ctx context.Context, id, vendorID string, now time.Time) (*model.Booking, error)
	RejectBooking(ctx context.Context, bookingID, vendorID string) error
	AssignWorker(ctx context.Context, id, vendorID, workerID string, now time.Time) (*model.Booking, error)
	DeclineAssignment(ctx context.Context, id, workerID string, now time.Time) (*model.Booking, error)
	StartBooking(ctx context.Context, id, workerID string, now time.Time) (*model.Booking, error)
	CompleteBooking(ctx context.Context, id string, now time.Time) (*model.Booking, error)
	CancelBooking(ctx context.Context, id string, from []string, reason string, now time.Time) (*model.Booking, error)
	ExpireBooking(ctx context.Context, id string, now time.Time) (*model.Booking, bool, error)
	MarkBookingPaid(ctx context.Context, id, vendorID string, now time.Time) (*model.Booking, error)
	PayBookingFromWallet(ctx context.Context, id, userID string, commissionPercent int, now time.Time) (*model.Booking, error)
	CountBookingsByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type ScrapStore interface {
	CreateScrap(ctx context.Context, item *model.ScrapItem) error
	GetScrap(ctx context.Context, id string) (*model.ScrapItem, error)
	ListScrap(ctx context.Context, filter storage.ScrapFilter) ([]model.ScrapItem, error)
	UpdateScrap(ctx context.Context, id, userID string, u storage.ScrapUpdate, now time.Time) (*model.ScrapItem, error)
	AcceptScrap(ctx context.Context, id, vendorID string, now time.Time) (*model.ScrapItem, error)
	CancelScrap(ctx context.Context, id string, from []string, reason string, now time.Time) (*model.ScrapItem, error)
	CompleteScrap(ctx context.Context, id, vendorID string, c storage.ScrapCompletion, now time.Time) (*model.ScrapItem, error)
	DeleteScrap(ctx context.Context, id string, allowed []string) error
	AddScrapImage(ctx context.Context, id, userID, url string, limit int, now time.Time) (*model.ScrapItem, error)
	CountScrapByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type WalletStore interface {
	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)
	ListWalletTransactions(ctx context.Context, userID string, page storage.Page) ([]model.WalletTransaction, error)
	TopUp(ctx context.Context, userID string, amount int64, paymentRef string) (*model.WalletTransaction, error)
	Adjust(ctx context.Context, userID string, amount int64, reason, adminID string) (*model.WalletTransaction, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, page storage.Page) ([]model.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

// ImageStore keeps uploaded scrap photos
type ImageStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// EventPublisher emits domain events and realtime frames
type EventPublisher interface {
	Publish(ctx context.Context, ev *events.Event)
	Broadcast(rooms []string, event string, data any)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Users         UserStore
	Bookings      BookingStore
	Scrap         ScrapStore
	Wallets       WalletStore
	Notifications NotificationStore
	Images        ImageStore // nil when object storage is disabled
	Publisher     EventPublisher
	Tokens        *auth.TokenManager
	Hub           *realtime.Hub
	Alerts        *realtime.AlertTracker
	Marketplace   config.MarketplaceConfig
	BcryptCost    int
	Now           func() time.Time
	Ready         func(ctx context.Context) error // nil reports ready
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}
