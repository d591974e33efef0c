package domain

import "slices"

// Booking statuses
const (
	BookingStatusPending    = "pending"
	BookingStatusAccepted   = "accepted"
	BookingStatusAssigned   = "assigned"
	BookingStatusInProgress = "in_progress"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
	BookingStatusExpired    = "expired"
)

// Payment
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"

	PaymentMethodCash   = "cash"
	PaymentMethodWallet = "wallet"
)

var bookingTransitions = map[string][]string{
	BookingStatusPending:    {BookingStatusAccepted, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusAccepted:   {BookingStatusAssigned, BookingStatusCancelled},
	BookingStatusAssigned:   {BookingStatusInProgress, BookingStatusAccepted, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted},
}

// CanTransitionBooking reports whether a booking may move from one status to another
func CanTransitionBooking(from, to string) bool {
	return slices.Contains(bookingTransitions[from], to)
}

// BookingStatusesFrom lists the statuses a booking may leave for `to`
func BookingStatusesFrom(to string) []string {
	var from []string
	for f, tos := range bookingTransitions {
		if slices.Contains(tos, to) {
			from = append(from, f)
		}
	}
	slices.Sort(from)
	return from
}

// IsTerminalBookingStatus reports whether no further transitions exist
func IsTerminalBookingStatus(status string) bool {
	return len(bookingTransitions[status]) == 0
}

// IsValidBookingStatus reports whether status is a known booking status
func IsValidBookingStatus(status string) bool {
	switch status {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusAssigned, BookingStatusInProgress,
		BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// IsValidPaymentMethod reports whether m is a supported payment method
func IsValidPaymentMethod(m string) bool {
	return m == PaymentMethodCash || m == PaymentMethodWallet
}

// MaxAmount bounds every money amount accepted from a client, in minor units
const MaxAmount int64 = 100_000_000_000

// Commission returns the platform share of amount, rounded down. The result is
// always within [0, amount] for non-negative amounts, without intermediate overflow.
func Commission(amount int64, percent int) int64 {
	p := int64(min(max(percent, 0), 100))
	return amount/100*p + amount%100*p/100
}
