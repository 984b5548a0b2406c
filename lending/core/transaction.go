package core

import (
	"time"
)

// TransactionStatus represents the lifecycle state of a loan.
type TransactionStatus string

// A loan starts issued and ends in exactly one terminal state.
const (
	TransactionIssued   TransactionStatus = "issued"
	TransactionReturned TransactionStatus = "returned"
	TransactionDamaged  TransactionStatus = "damaged"
	TransactionLost     TransactionStatus = "lost"
)

// Transaction is the record of a copy being in a member's possession.
// Terminal states are immutable; ReturnDate is set iff the status is no
// longer issued.
type Transaction struct {
	ID         TransactionIDString
	MemberID   MemberIDString
	BookID     ISBNString
	RequestID  RequestIDString
	Status     TransactionStatus
	IssueDate  Timestamp
	DueDate    Timestamp
	ReturnDate *Timestamp
	FineID     *FineIDString
}

// BuildTransaction creates a new issued loan for an accepted request.
// The due date is derived from the settings snapshot in effect right now;
// later settings changes never move it.
func BuildTransaction(id TransactionIDString, request BookRequest, settings LibrarySettings, now time.Time) Transaction {
	issueDate := ToTimestamp(now)

	return Transaction{
		ID:        id,
		MemberID:  request.MemberID,
		BookID:    request.BookID,
		RequestID: request.ID,
		Status:    TransactionIssued,
		IssueDate: issueDate,
		DueDate:   issueDate.AddDate(0, 0, settings.MaxBorrowingDays),
	}
}

// Close moves an issued loan to the given terminal state and stamps the
// return date. Closing a loan twice fails with ErrInvalidStateTransition:
// the status is no longer issued.
func (t Transaction) Close(status TransactionStatus, now time.Time) (Transaction, error) {
	if t.Status != TransactionIssued {
		return t, ErrInvalidStateTransition
	}

	returnDate := ToTimestamp(now)

	t.Status = status
	t.ReturnDate = &returnDate

	return t, nil
}

// WithFine links a recorded fine to the transaction.
func (t Transaction) WithFine(fineID FineIDString) Transaction {
	t.FineID = &fineID

	return t
}

// DaysLate computes how many whole days past the due date the loan was
// closed at the given instant; never negative.
func (t Transaction) DaysLate(at time.Time) int {
	late := ToTimestamp(at).Sub(t.DueDate)
	if late <= 0 {
		return 0
	}

	return int(late / (24 * time.Hour))
}

// IsOverdue reports whether an open loan has passed its due date.
func (t Transaction) IsOverdue(at time.Time) bool {
	return t.Status == TransactionIssued && ToTimestamp(at).After(t.DueDate)
}
