package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStorage(postgresql.NewClientFromDB(sqlx.NewDb(db, "postgres"), logger)), mock
}

var bookingRowColumns = []string{
	"id", "user_id", "vendor_id", "worker_id", "category", "address", "scheduled_at", "notes",
	"amount", "payment_method", "payment_status", "status", "alert_expires_at",
	"accepted_at", "assigned_at", "started_at", "completed_at", "cancelled_at",
	"cancel_reason", "created_at", "updated_at",
}

func bookingRows(id, status string, vendorID interface{}, alertExpiresAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingRowColumns).AddRow(
		id, "user-1", vendorID, nil, domain.CategoryPlumbing, "1 Main St", now.Add(24*time.Hour), "",
		int64(50000), domain.PaymentMethodWallet, domain.PaymentStatusUnpaid, status, alertExpiresAt,
		nil, nil, nil, nil, nil,
		"", now, now,
	)
}

func TestFilterQuery_Paginate(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var f filterQuery
	f.add("user_id = ?", "u-1")
	f.add("status = ANY(?)", "x")
	clause := f.paginate(Page{PageSize: 20, Cursor: &Cursor{CreatedAt: created, ID: "b-9"}})

	assert.Equal(t,
		" WHERE user_id = $1 AND status = ANY($2) AND (created_at, id) < ($3, $4) ORDER BY created_at DESC, id DESC LIMIT $5",
		clause)
	assert.Equal(t, []interface{}{"u-1", "x", created, "b-9", 21}, f.args)

	var empty filterQuery
	assert.Equal(t, " ORDER BY created_at DESC, id DESC LIMIT $1", empty.paginate(Page{PageSize: 10}))
}

func TestStorage_CreateUser(t *testing.T) {
	user := &model.User{
		ID:                "11111111-1111-1111-1111-111111111111",
		Email:             "alice@example.com",
		PasswordHash:      "hash",
		Name:              "Alice",
		Role:              domain.RoleUser,
		ServiceCategories: pq.StringArray{},
		IsActive:          true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	t.Run("creates user and wallet", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallets").WithArgs(user.ID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.CreateUser(context.Background(), user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := s.CreateUser(context.Background(), user)
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_AcceptBooking(t *testing.T) {
	now := time.Now()
	ctx := context.Background()

	t.Run("first vendor wins", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery("UPDATE bookings").
			WithArgs(domain.BookingStatusAccepted, "vendor-1", now, "b-1", domain.BookingStatusPending).
			WillReturnRows(bookingRows("b-1", domain.BookingStatusAccepted, "vendor-1", now.Add(time.Minute)))

		b, err := s.AcceptBooking(ctx, "b-1", "vendor-1", now)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusAccepted, b.Status)
		require.NotNil(t, b.VendorID)
		assert.Equal(t, "vendor-1", *b.VendorID)
	})

	tests := []struct {
		name    string
		current *sqlmock.Rows
		wantErr error
	}{
		{
			name:    "already accepted by another vendor",
			current: bookingRows("b-1", domain.BookingStatusAccepted, "vendor-2", now.Add(time.Minute)),
			wantErr: domain.ErrAlreadyAccepted,
		},
		{
			name:    "alert deadline passed",
			current: bookingRows("b-1", domain.BookingStatusPending, nil, now.Add(-time.Second)),
			wantErr: domain.ErrAlertExpired,
		},
		{
			name:    "expired by sweeper",
			current: bookingRows("b-1", domain.BookingStatusExpired, nil, now.Add(-time.Minute)),
			wantErr: domain.ErrAlertExpired,
		},
		{
			name:    "cancelled by owner",
			current: bookingRows("b-1", domain.BookingStatusCancelled, nil, now.Add(time.Minute)),
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "unknown booking",
			current: sqlmock.NewRows(bookingRowColumns),
			wantErr: domain.ErrBookingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			mock.ExpectQuery("UPDATE bookings").WillReturnRows(sqlmock.NewRows(bookingRowColumns))
			mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").WithArgs("b-1").WillReturnRows(tt.current)

			_, err := s.AcceptBooking(ctx, "b-1", "vendor-1", now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_ExpireBooking(t *testing.T) {
	now := time.Now()

	t.Run("expires pending booking", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery("UPDATE bookings SET status = \\$1, updated_at = \\$2 WHERE id = \\$3 AND status = \\$4 AND alert_expires_at <= \\$5").
			WithArgs(domain.BookingStatusExpired, now, "b-1", domain.BookingStatusPending, now).
			WillReturnRows(bookingRows("b-1", domain.BookingStatusExpired, nil, now))

		b, expired, err := s.ExpireBooking(context.Background(), "b-1", now)
		require.NoError(t, err)
		assert.True(t, expired)
		assert.Equal(t, domain.BookingStatusExpired, b.Status)
	})

	t.Run("accepted in the meantime", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery("UPDATE bookings").WillReturnRows(sqlmock.NewRows(bookingRowColumns))
		mock.ExpectQuery("SELECT (.+) FROM bookings").
			WillReturnRows(bookingRows("b-1", domain.BookingStatusAccepted, "vendor-1", now))

		b, expired, err := s.ExpireBooking(context.Background(), "b-1", now)
		require.NoError(t, err)
		assert.False(t, expired)
		assert.Nil(t, b)
	})
}

func TestStorage_RejectBooking(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec("INSERT INTO booking_rejections (.+) ON CONFLICT DO NOTHING").
		WithArgs("b-1", "vendor-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.RejectBooking(context.Background(), "b-1", "vendor-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Adjust(t *testing.T) {
	ctx := context.Background()

	t.Run("debit beyond balance", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE wallets SET balance = balance - \\$1").
			WithArgs(int64(500), "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := s.Adjust(ctx, "user-1", -500, "chargeback", "admin-1")
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("credit writes one ledger row", func(t *testing.T) {
		s, mock := newMockStorage(t)
		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE wallets SET balance = balance \\+ \\$1").
			WithArgs(int64(700), "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(1700)))
		mock.ExpectQuery("INSERT INTO wallet_transactions").
			WithArgs(sqlmock.AnyArg(), "user-1", TransactionCredit, int64(700), int64(1700),
				"goodwill", ReferenceAdjustment, "admin-1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "type", "amount", "balance_after", "reason", "reference_type", "reference_id", "created_at",
			}).AddRow("t-1", "user-1", TransactionCredit, int64(700), int64(1700), "goodwill", ReferenceAdjustment, "admin-1", now))
		mock.ExpectCommit()

		entry, err := s.Adjust(ctx, "user-1", 700, "goodwill", "admin-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1700), entry.BalanceAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount", func(t *testing.T) {
		s, _ := newMockStorage(t)
		_, err := s.Adjust(ctx, "user-1", 0, "noop", "admin-1")
		assert.Error(t, err)
	})
}

func TestStorage_TopUp_DuplicateReference(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets").WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(100)))
	mock.ExpectQuery("INSERT INTO wallet_transactions").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.TopUp(context.Background(), "user-1", 100, "pay_123")
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkRead(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs("n-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkRead(context.Background(), "n-1", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestStorage_DeleteScrap(t *testing.T) {
	ctx := context.Background()

	t.Run("restricted status", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectExec("DELETE FROM scrap_items WHERE id = \\$1 AND status = ANY\\(\\$2\\)").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id").
			WillReturnError(errors.New("connection reset"))

		err := s.DeleteScrap(ctx, "s-1", []string{domain.ScrapStatusPending})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get scrap item")
	})

	t.Run("admin deletes any status", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectExec("DELETE FROM scrap_items WHERE id = \\$1$").
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.DeleteScrap(ctx, "s-1", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

var ledgerColumns = []string{
	"id", "user_id", "type", "amount", "balance_after", "reason", "reference_type", "reference_id", "created_at",
}

// expectLedgerMove expects one balance update and exactly one ledger row for userID
func expectLedgerMove(mock sqlmock.Sqlmock, userID, kind string, amount, balanceAfter int64, ref Reference) {
	op := "\\+"
	if kind == TransactionDebit {
		op = "-"
	}
	mock.ExpectQuery("UPDATE wallets SET balance = balance "+op+" \\$1").
		WithArgs(amount, userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balanceAfter))
	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(sqlmock.AnyArg(), userID, kind, amount, balanceAfter, sqlmock.AnyArg(), ref.Type, ref.ID).
		WillReturnRows(sqlmock.NewRows(ledgerColumns).
			AddRow("t-"+userID, userID, kind, amount, balanceAfter, "", ref.Type, ref.ID, time.Now()))
}

func expectWalletLock(mock sqlmock.Sqlmock, a, b string) {
	mock.ExpectQuery("SELECT user_id FROM wallets WHERE user_id IN \\(\\$1, \\$2\\) ORDER BY user_id FOR UPDATE").
		WithArgs(a, b).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(min(a, b)).AddRow(max(a, b)))
}

func completedBookingRows(paymentStatus string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingRowColumns).AddRow(
		"b-1", "user-1", "vendor-1", "worker-1", domain.CategoryPlumbing, "1 Main St", now, "",
		int64(50000), domain.PaymentMethodWallet, paymentStatus, domain.BookingStatusCompleted, now,
		now, now, now, now, nil,
		"", now, now,
	)
}

func TestStorage_PayBookingFromWallet(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := Reference{Type: ReferenceBooking, ID: "b-1"}

	t.Run("debits owner and credits vendor net of commission", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
			WithArgs("b-1").
			WillReturnRows(completedBookingRows(domain.PaymentStatusUnpaid))
		expectWalletLock(mock, "user-1", "vendor-1")
		expectLedgerMove(mock, "user-1", TransactionDebit, 50000, 10000, ref)
		expectLedgerMove(mock, "vendor-1", TransactionCredit, 45000, 45000, ref)
		mock.ExpectQuery("UPDATE bookings SET payment_status = \\$1, payment_method = \\$2").
			WithArgs(domain.PaymentStatusPaid, domain.PaymentMethodWallet, now, "b-1").
			WillReturnRows(completedBookingRows(domain.PaymentStatusPaid))
		mock.ExpectCommit()

		b, err := s.PayBookingFromWallet(ctx, "b-1", "user-1", 10, now)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, b.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds rolls back before any credit", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(completedBookingRows(domain.PaymentStatusUnpaid))
		expectWalletLock(mock, "user-1", "vendor-1")
		mock.ExpectQuery("UPDATE wallets SET balance = balance - \\$1").
			WithArgs(int64(50000), "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := s.PayBookingFromWallet(ctx, "b-1", "user-1", 10, now)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	guards := []struct {
		name    string
		userID  string
		payment string
		wantErr error
	}{
		{name: "not the owner", userID: "user-2", payment: domain.PaymentStatusUnpaid, wantErr: domain.ErrForbidden},
		{name: "already paid", userID: "user-1", payment: domain.PaymentStatusPaid, wantErr: domain.ErrAlreadyPaid},
	}

	for _, tt := range guards {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
				WillReturnRows(completedBookingRows(tt.payment))
			mock.ExpectRollback()

			_, err := s.PayBookingFromWallet(ctx, "b-1", tt.userID, 10, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

var scrapRowColumns = []string{
	"id", "user_id", "vendor_id", "category", "description", "estimated_weight_kg", "estimated_price",
	"final_weight_kg", "final_price", "payout_method", "pickup_address", "pickup_at", "images",
	"status", "cancel_reason", "accepted_at", "completed_at", "cancelled_at", "created_at", "updated_at",
}

func scrapRows(status string, vendorID interface{}, images string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(scrapRowColumns).AddRow(
		"s-1", "user-1", vendorID, domain.ScrapCategoryMetal, "", 12.5, int64(3000),
		nil, nil, nil, "1 Main St", now.Add(time.Hour), images,
		status, "", nil, nil, nil, now, now,
	)
}

func TestStorage_CompleteScrap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := Reference{Type: ReferenceScrap, ID: "s-1"}
	completion := ScrapCompletion{FinalWeightKg: 11.2, FinalPrice: 3200, PayoutMethod: domain.PayoutMethodWallet}

	t.Run("wallet payout moves the final price to the owner", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id = \\$1 FOR UPDATE").
			WithArgs("s-1").
			WillReturnRows(scrapRows(domain.ScrapStatusAccepted, "vendor-1", "{}"))
		expectWalletLock(mock, "vendor-1", "user-1")
		expectLedgerMove(mock, "vendor-1", TransactionDebit, 3200, 800, ref)
		expectLedgerMove(mock, "user-1", TransactionCredit, 3200, 3200, ref)
		mock.ExpectQuery("UPDATE scrap_items SET status = \\$1").
			WithArgs(domain.ScrapStatusCompleted, 11.2, int64(3200), domain.PayoutMethodWallet, now, "s-1").
			WillReturnRows(scrapRows(domain.ScrapStatusCompleted, "vendor-1", "{}"))
		mock.ExpectCommit()

		item, err := s.CompleteScrap(ctx, "s-1", "vendor-1", completion, now)
		require.NoError(t, err)
		assert.Equal(t, domain.ScrapStatusCompleted, item.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("vendor wallet cannot cover the payout", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(scrapRows(domain.ScrapStatusAccepted, "vendor-1", "{}"))
		expectWalletLock(mock, "vendor-1", "user-1")
		mock.ExpectQuery("UPDATE wallets SET balance = balance - \\$1").
			WithArgs(int64(3200), "vendor-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("vendor-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := s.CompleteScrap(ctx, "s-1", "vendor-1", completion, now)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cash payout skips the wallets", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(scrapRows(domain.ScrapStatusAccepted, "vendor-1", "{}"))
		mock.ExpectQuery("UPDATE scrap_items SET status = \\$1").
			WillReturnRows(scrapRows(domain.ScrapStatusCompleted, "vendor-1", "{}"))
		mock.ExpectCommit()

		cash := completion
		cash.PayoutMethod = domain.PayoutMethodCash
		_, err := s.CompleteScrap(ctx, "s-1", "vendor-1", cash, now)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another vendor", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(scrapRows(domain.ScrapStatusAccepted, "vendor-1", "{}"))
		mock.ExpectRollback()

		_, err := s.CompleteScrap(ctx, "s-1", "vendor-2", completion, now)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_AcceptScrap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("conditional on pending", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery("UPDATE scrap_items SET status = \\$1, vendor_id = \\$2, accepted_at = \\$3, updated_at = \\$4 WHERE id = \\$5 AND status = \\$6").
			WithArgs(domain.ScrapStatusAccepted, "vendor-1", now, now, "s-1", domain.ScrapStatusPending).
			WillReturnRows(scrapRows(domain.ScrapStatusAccepted, "vendor-1", "{}"))

		item, err := s.AcceptScrap(ctx, "s-1", "vendor-1", now)
		require.NoError(t, err)
		require.NotNil(t, item.VendorID)
		assert.Equal(t, "vendor-1", *item.VendorID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{name: "another vendor got there first", status: domain.ScrapStatusAccepted, wantErr: domain.ErrAlreadyAccepted},
		{name: "owner cancelled", status: domain.ScrapStatusCancelled, wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			mock.ExpectQuery("UPDATE scrap_items").WillReturnRows(sqlmock.NewRows(scrapRowColumns))
			mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id").
				WillReturnRows(scrapRows(tt.status, "vendor-2", "{}"))
			mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id").
				WillReturnRows(scrapRows(tt.status, "vendor-2", "{}"))

			_, err := s.AcceptScrap(ctx, "s-1", "vendor-1", now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_AddScrapImage(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("guards owner, status and count in one update", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery("UPDATE scrap_items SET images = array_append\\(images, \\$1\\), updated_at = \\$2 WHERE id = \\$3 AND user_id = \\$4 AND status = \\$5 AND cardinality\\(images\\) < \\$6").
			WithArgs("http://img/1.png", now, "s-1", "user-1", domain.ScrapStatusPending, 5).
			WillReturnRows(scrapRows(domain.ScrapStatusPending, nil, "{http://img/1.png}"))

		item, err := s.AddScrapImage(ctx, "s-1", "user-1", "http://img/1.png", 5, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://img/1.png"}, []string(item.Images))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	tests := []struct {
		name    string
		status  string
		images  string
		wantErr error
	}{
		{name: "five images already attached", status: domain.ScrapStatusPending, images: "{a,b,c,d,e}", wantErr: domain.ErrImageLimitReached},
		{name: "no longer pending", status: domain.ScrapStatusAccepted, images: "{a}", wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			mock.ExpectQuery("UPDATE scrap_items").WillReturnRows(sqlmock.NewRows(scrapRowColumns))
			mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id").
				WillReturnRows(scrapRows(tt.status, nil, tt.images))
			mock.ExpectQuery("SELECT (.+) FROM scrap_items WHERE id").
				WillReturnRows(scrapRows(tt.status, nil, tt.images))

			_, err := s.AddScrapImage(ctx, "s-1", "user-1", "http://img/6.png", 5, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
