package core

import (
	"math"
	"time"
)

// Instead of implementing full value objects, alias types and helper methods are used here ...

// ISBNString represents a book identifier (the catalog key).
type ISBNString = string

// MemberIDString represents a library member identifier.
type MemberIDString = string

// RequestIDString represents a book request identifier.
type RequestIDString = string

// TransactionIDString represents a loan transaction identifier.
type TransactionIDString = string

// FineIDString represents a fine identifier.
type FineIDString = string

// Timestamp represents a point in time recorded on an entity.
type Timestamp = time.Time

// ToTimestamp converts a time to Timestamp with UTC normalization and microsecond precision.
func ToTimestamp(t time.Time) Timestamp {
	return t.UTC().Truncate(time.Microsecond)
}

// RoundToCents rounds a monetary amount to two decimal places.
func RoundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
