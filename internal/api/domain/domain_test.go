package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionBooking(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{BookingStatusPending, BookingStatusAccepted, true},
		{BookingStatusPending, BookingStatusExpired, true},
		{BookingStatusPending, BookingStatusAssigned, false},
		{BookingStatusAccepted, BookingStatusAssigned, true},
		{BookingStatusAssigned, BookingStatusAccepted, true}, // worker declined
		{BookingStatusAssigned, BookingStatusInProgress, true},
		{BookingStatusInProgress, BookingStatusCancelled, false},
		{BookingStatusInProgress, BookingStatusCompleted, true},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusExpired, BookingStatusAccepted, false},
		{"unknown", BookingStatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionBooking(tt.from, tt.to))
		})
	}
}

func TestBookingStatusesFrom(t *testing.T) {
	assert.Equal(t,
		[]string{BookingStatusAccepted, BookingStatusAssigned, BookingStatusPending},
		BookingStatusesFrom(BookingStatusCancelled),
	)
	assert.Equal(t, []string{BookingStatusInProgress}, BookingStatusesFrom(BookingStatusCompleted))
	assert.Empty(t, BookingStatusesFrom(BookingStatusPending))
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []string{BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired} {
		assert.True(t, IsTerminalBookingStatus(s), s)
	}
	assert.False(t, IsTerminalBookingStatus(BookingStatusPending))

	assert.True(t, IsTerminalScrapStatus(ScrapStatusCompleted))
	assert.True(t, IsTerminalScrapStatus(ScrapStatusCancelled))
	assert.False(t, IsTerminalScrapStatus(ScrapStatusAccepted))
}

func TestCanTransitionScrap(t *testing.T) {
	assert.True(t, CanTransitionScrap(ScrapStatusPending, ScrapStatusAccepted))
	assert.True(t, CanTransitionScrap(ScrapStatusAccepted, ScrapStatusCompleted))
	assert.True(t, CanTransitionScrap(ScrapStatusAccepted, ScrapStatusCancelled))
	assert.False(t, CanTransitionScrap(ScrapStatusPending, ScrapStatusCompleted))
	assert.False(t, CanTransitionScrap(ScrapStatusCompleted, ScrapStatusCancelled))
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidRole(RoleWorker))
	assert.False(t, IsValidRole("superuser"))

	assert.True(t, IsServiceCategory(CategoryPestControl))
	assert.False(t, IsServiceCategory("gardening"))

	assert.True(t, IsScrapCategory(ScrapCategoryEWaste))
	assert.False(t, IsScrapCategory("wood"))

	assert.True(t, IsValidPaymentMethod(PaymentMethodWallet))
	assert.False(t, IsValidPaymentMethod("card"))

	assert.True(t, IsValidBookingStatus(BookingStatusInProgress))
	assert.True(t, IsValidScrapStatus(ScrapStatusCancelled))
	assert.False(t, IsValidScrapStatus(BookingStatusExpired))
}

func TestCommission(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		percent int
		want    int64
	}{
		{"ten percent", 1000, 10, 100},
		{"zero percent", 1000, 0, 0},
		{"rounds down", 999, 10, 99},
		{"small amount", 7, 50, 3},
		{"full share", 12345, 100, 12345},
		{"percent clamped high", 500, 150, 500},
		{"percent clamped low", 500, -5, 0},
		{"largest accepted amount", MaxAmount, 10, MaxAmount / 10},
		{"near int64 max", 1_000_000_000_000_000_000, 10, 100_000_000_000_000_000},
		{"int64 max", math.MaxInt64, 99, 9131138316486228048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Commission(tt.amount, tt.percent)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, tt.amount)
		})
	}
}
