package domain

import "errors"

// ErrInvalidEvent marks a delivery whose body is not a usable event envelope.
// Such messages go straight to the dead letter queue.
var ErrInvalidEvent = errors.New("invalid event")

// TransientError is a failure that may succeed on redelivery, such as a
// database timeout while writing the inbox
type TransientError struct {
	Stage string
	Err   error
}

func (e *TransientError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable at stage; nil stays nil
func Transient(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Stage: stage, Err: err}
}

// IsTransient reports whether err, or anything it wraps, is a TransientError
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
