package domain

import (
	"errors"
	"fmt"
)

var ErrRecordNotFound = errors.New("Record not found")
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrConfiguration          = errors.New("configuration error")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvariantViolation     = errors.New("invariant violation")
	ErrResourceBusy           = errors.New("resource busy")
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")
)

var (
	ErrAccountNotActive    = fmt.Errorf("%w: account is not active", ErrInvalidTransition)
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrInvariantViolation)
	ErrDuplicateReference  = errors.New("duplicate reference")
)

type ErrorClass string

const (
	ClassRetryable ErrorClass = "retryable"
	ClassInvalid   ErrorClass = "invalid"
	ClassIntegrity ErrorClass = "integrity"
	ClassUnknown   ErrorClass = "unknown"
)

// Classify tells a caller whether retrying is safe, pointless, or must be escalated.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceBusy):
		return ClassRetryable
	case errors.Is(err, ErrInvariantViolation), errors.Is(err, ErrReconciliationMismatch):
		return ClassIntegrity
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrRecordNotFound):
		return ClassInvalid
	default:
		return ClassUnknown
	}
}

func IsRetryable(err error) bool {
	return Classify(err) == ClassRetryable
}
