package core

import (
	"errors"
)

var (
	// ErrInvalidStateTransition is returned when an operation targets a record
	// that is not in the required state (e.g. accepting an already-decided
	// request, or closing a loan twice).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInventoryExhausted is returned when no copies are available to reserve.
	// This is a terminal business outcome, not a retryable fault.
	ErrInventoryExhausted = errors.New("no copies available")

	// ErrInvalidCount is returned when a mark-available/unavailable count is
	// outside its valid bound.
	ErrInvalidCount = errors.New("count outside valid bound")

	// ErrReservationExpired is returned when a loan is issued after the
	// reservation window of the accepted request has elapsed.
	ErrReservationExpired = errors.New("reservation expired")

	// ErrNegativeCost is returned when a book is built with a negative cost.
	ErrNegativeCost = errors.New("book cost must not be negative")

	// ErrNegativeCopies is returned when a book is built with negative copy counts.
	ErrNegativeCopies = errors.New("copy counts must not be negative")

	// ErrInvalidFineReason is returned when a fine is recorded with a reason
	// other than late, damaged, or lost.
	ErrInvalidFineReason = errors.New("fine reason must be late, damaged, or lost")
)
