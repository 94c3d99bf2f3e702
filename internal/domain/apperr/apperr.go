// Package apperr defines the error kinds surfaced by the inventory core.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a sku or id that matches no record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation on sku.
	ErrConflict = errors.New("conflict")
	// ErrStorage marks an unavailable store or a failed write.
	ErrStorage = errors.New("storage failure")
	// ErrDelivery marks a failed notification send. It is logged, never returned to callers.
	ErrDelivery = errors.New("delivery failed")
	// ErrTimeout marks a store or notifier call that ran past its deadline.
	ErrTimeout = errors.New("timeout")
)

// Validation builds an ErrValidation with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound with a formatted reason.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict builds an ErrConflict with a formatted reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Delivery wraps a notifier failure.
func Delivery(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDelivery, op, err)
}

// Storage wraps a store failure. Deadline expiry is reported as ErrTimeout so
// callers can tell a slow store from a broken one.
func Storage(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsClientError reports whether err is something the caller can correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
