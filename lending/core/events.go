package core

// EventTypes published on the lending event feed.
const (
	BookRequestAcceptedEventType = "BookRequestAccepted"
	BookRequestRejectedEventType = "BookRequestRejected"
	LoanIssuedEventType          = "LoanIssued"
	LoanClosedEventType          = "LoanClosed"
	FineRecordedEventType        = "FineRecorded"
	FineStatusToggledEventType   = "FineStatusToggled"
)

// DomainEvent is implemented by every notification the lifecycle operations
// emit after their writes have been acknowledged by the store.
type DomainEvent interface {
	EventType() string
	OccurredAt() Timestamp
}

// BookRequestAccepted signals that a pending request was accepted and a copy reserved.
type BookRequestAccepted struct {
	RequestID  RequestIDString
	MemberID   MemberIDString
	BookID     ISBNString
	HappenedAt Timestamp
}

func (e BookRequestAccepted) EventType() string     { return BookRequestAcceptedEventType }
func (e BookRequestAccepted) OccurredAt() Timestamp { return e.HappenedAt }

// BookRequestRejected signals that a pending request was turned down.
type BookRequestRejected struct {
	RequestID  RequestIDString
	MemberID   MemberIDString
	BookID     ISBNString
	HappenedAt Timestamp
}

func (e BookRequestRejected) EventType() string     { return BookRequestRejectedEventType }
func (e BookRequestRejected) OccurredAt() Timestamp { return e.HappenedAt }

// LoanIssued signals that an accepted request materialized into a loan.
type LoanIssued struct {
	TransactionID TransactionIDString
	RequestID     RequestIDString
	MemberID      MemberIDString
	BookID        ISBNString
	DueDate       Timestamp
	HappenedAt    Timestamp
}

func (e LoanIssued) EventType() string     { return LoanIssuedEventType }
func (e LoanIssued) OccurredAt() Timestamp { return e.HappenedAt }

// LoanClosed signals a terminal loan closure; Status carries whether the copy
// came back returned, damaged, or lost, and FineID is empty when no fine arose.
type LoanClosed struct {
	TransactionID TransactionIDString
	MemberID      MemberIDString
	BookID        ISBNString
	Status        TransactionStatus
	FineID        string
	HappenedAt    Timestamp
}

func (e LoanClosed) EventType() string     { return LoanClosedEventType }
func (e LoanClosed) OccurredAt() Timestamp { return e.HappenedAt }

// FineRecorded signals that a fine was created against a loan.
type FineRecorded struct {
	FineID        FineIDString
	MemberID      MemberIDString
	TransactionID TransactionIDString
	Amount        float64
	Reason        FineReason
	HappenedAt    Timestamp
}

func (e FineRecorded) EventType() string     { return FineRecordedEventType }
func (e FineRecorded) OccurredAt() Timestamp { return e.HappenedAt }

// FineStatusToggled signals that a fine flipped between pending and paid.
type FineStatusToggled struct {
	FineID     FineIDString
	Status     FineStatus
	HappenedAt Timestamp
}

func (e FineStatusToggled) EventType() string     { return FineStatusToggledEventType }
func (e FineStatusToggled) OccurredAt() Timestamp { return e.HappenedAt }
