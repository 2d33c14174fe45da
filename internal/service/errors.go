package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrIDRequired          = errors.New("id is required")
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrRateLimited         = errors.New("too many login attempts")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrInvalidSignature    = errors.New("payment signature mismatch")
	ErrAmountMismatch      = errors.New("payment amount mismatch")
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// validationf builds an ErrValidation whose message is safe to show to clients.
func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RateLimitedError matches ErrRateLimited and says when to retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// LockedError matches ErrAccountLocked and carries the unlock instant.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }
