package errors

import (
	"errors"
	"fmt"
)

// Error classes shared by the backend binding and the session synchronizer.
// Every error returned to a caller unwraps to exactly one of these.
var (
	// ErrValidation is a user-correctable failure (bad credentials, malformed
	// profile field). Never retried automatically.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized means the session is expired or invalid. Triggers a full
	// local logout.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotProvisioned means the session is valid but access has not been
	// granted yet. Triggers the gated pending state, not a logout.
	ErrNotProvisioned = errors.New("not provisioned")

	// ErrUnavailable covers network failures and server side 5xx responses.
	// Local state is left untouched so the caller can retry.
	ErrUnavailable = errors.New("backend unavailable")
)

// Client state errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSuperseded       = errors.New("superseded by a newer session change")
	ErrNotFound         = errors.New("not found")
	ErrCorrupt          = errors.New("corrupt data")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Validationf builds an ErrValidation with a human readable reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
