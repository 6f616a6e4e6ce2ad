// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Lookup errors
var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrRecordNotFound  = errors.New("kyc record not found")
)

// State machine errors
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyFinalized  = errors.New("record already finalized")
)

// Validation errors
var (
	ErrValidation     = errors.New("profile validation failed")
	ErrReasonRequired = errors.New("a non-empty reason is required")
)

// Enforcement denials. These are fail-closed: a transfer must not proceed
// when any of them is returned.
var (
	ErrNotVerified          = errors.New("subject is not verified")
	ErrExpired              = errors.New("verification has expired")
	ErrBlacklisted          = errors.New("subject is blacklisted")
	ErrNotWhitelisted       = errors.New("subject is not whitelisted")
	ErrDailyLimitExceeded   = errors.New("daily transaction limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly transaction limit exceeded")
	ErrTotalLimitExceeded   = errors.New("total transaction limit exceeded")
	ErrTransactionBlocked   = errors.New("transaction blocked by aml screening")
)

// Degradation and authorization errors
var (
	ErrExternalCheckDegraded = errors.New("one or more external checks degraded")
	ErrPermissionDenied      = errors.New("admin lacks required permission")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New returns a new error with the given text.
func New(text string) error {
	return errors.New(text)
}
