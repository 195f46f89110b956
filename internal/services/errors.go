package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a payment transaction or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a caller asks about a transaction they do not own.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited is returned when sweep invocation caps are exceeded.
	// The limit protects the provider relationship, so the whole sweep is
	// rejected before any gateway call is made.
	ErrRateLimited = errors.New("sweep rate limit exceeded")

	// ErrSweepInProgress is returned when a sweep is triggered while
	// another is still running.
	ErrSweepInProgress = errors.New("a reconciliation sweep is already in progress")
)

// ValidationError describes rejected input. No transaction record is
// created and no gateway call is made when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigurationError signals that the gateway is not usable because
// credentials are missing; the service is effectively unavailable.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
