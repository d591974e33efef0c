package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrScrapNotFound        = errors.New("scrap item not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrWalletNotFound       = errors.New("wallet not found")

	// ErrForbidden is returned when the caller's role or ownership does not allow the action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a status change is not allowed from the current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyAccepted is returned to every acceptor but the first
	ErrAlreadyAccepted = errors.New("already accepted by another vendor")

	// ErrAlertExpired is returned when accepting after the alert countdown ran out
	ErrAlertExpired = errors.New("booking alert expired")

	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicatePayment  = errors.New("payment reference already used")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrWorkerUnavailable = errors.New("worker not found or inactive")
	ErrCategoryNotServed = errors.New("vendor does not serve this category")
	ErrImageLimitReached = errors.New("image limit reached")
	ErrAlreadyPaid       = errors.New("booking already paid")
)
