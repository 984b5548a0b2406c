package core

import (
	"time"
)

// FineReason classifies the abnormal loan closure that caused a fine.
type FineReason string

// Fine reasons.
const (
	FineReasonLate    FineReason = "late"
	FineReasonDamaged FineReason = "damaged"
	FineReasonLost    FineReason = "lost"
)

// IsValid reports whether the reason is one of the known closure reasons.
func (r FineReason) IsValid() bool {
	switch r {
	case FineReasonLate, FineReasonDamaged, FineReasonLost:
		return true
	default:
		return false
	}
}

// FineStatus represents the settlement state of a fine.
type FineStatus string

// Fine settlement states.
const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
)

// Fine is a monetary penalty tied to a specific loan's abnormal closure.
// The amount is fixed at creation from the settings snapshot in effect at
// closure time; only the settlement status ever changes afterwards.
type Fine struct {
	ID            FineIDString
	MemberID      MemberIDString
	TransactionID TransactionIDString
	Amount        float64
	Reason        FineReason
	Status        FineStatus
	CreatedAt     Timestamp
	PaidAt        *Timestamp
}

// BuildFine creates a new pending Fine.
func BuildFine(id FineIDString, memberID MemberIDString, transactionID TransactionIDString, amount float64, reason FineReason, now time.Time) Fine {
	return Fine{
		ID:            id,
		MemberID:      memberID,
		TransactionID: transactionID,
		Amount:        RoundToCents(amount),
		Reason:        reason,
		Status:        FinePending,
		CreatedAt:     ToTimestamp(now),
	}
}

// ToggleStatus flips the settlement state between pending and paid,
// setting or clearing PaidAt accordingly. No monetary recomputation happens.
func (f Fine) ToggleStatus(now time.Time) Fine {
	if f.Status == FinePending {
		paidAt := ToTimestamp(now)
		f.Status = FinePaid
		f.PaidAt = &paidAt

		return f
	}

	f.Status = FinePending
	f.PaidAt = nil

	return f
}

// LateFineAmount computes the fine for a loan returned daysLate whole days
// past its due date.
func LateFineAmount(daysLate int, settings LibrarySettings) float64 {
	if daysLate <= 0 {
		return 0
	}

	return RoundToCents(float64(daysLate) * settings.LateReturnFine)
}

// DamagedFineAmount computes the fine for a damaged copy as a percentage of
// the book's cost.
func DamagedFineAmount(bookCost float64, settings LibrarySettings) float64 {
	return RoundToCents(bookCost * float64(settings.DamagedBookPercentage) / 100)
}

// LostFineAmount computes the fine for a lost copy as a percentage of the
// book's cost.
func LostFineAmount(bookCost float64, settings LibrarySettings) float64 {
	return RoundToCents(bookCost * float64(settings.LostBookPercentage) / 100)
}
