package core

import (
	"time"
)

// RequestStatus represents the lifecycle state of a BookRequest.
type RequestStatus string

// The request state machine only moves forward:
// pending -> {accepted, rejected}, accepted -> issued.
const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestIssued   RequestStatus = "issued"
)

// BookRequest is a member's intent to borrow a title. It carries no inventory
// effect until it is accepted.
type BookRequest struct {
	ID                   RequestIDString
	MemberID             MemberIDString
	BookID               ISBNString
	Status               RequestStatus
	Window               time.Duration // reservation hold window, zero means "use the settings default"
	CreatedAt            Timestamp
	AcceptedAt           *Timestamp
	ReservationExpiresAt *Timestamp
	UpdatedAt            Timestamp
}

// BuildBookRequest creates a new pending BookRequest.
func BuildBookRequest(id RequestIDString, memberID MemberIDString, bookID ISBNString, window time.Duration, now time.Time) BookRequest {
	ts := ToTimestamp(now)

	return BookRequest{
		ID:        id,
		MemberID:  memberID,
		BookID:    bookID,
		Status:    RequestPending,
		Window:    window,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Accept moves a pending request to accepted and stamps the reservation
// window. holdWindow is the request's own window or the settings default.
// Returns ErrInvalidStateTransition when the request was already decided.
func (r BookRequest) Accept(holdWindow time.Duration, now time.Time) (BookRequest, error) {
	if r.Status != RequestPending {
		return r, ErrInvalidStateTransition
	}

	acceptedAt := ToTimestamp(now)
	expiresAt := acceptedAt.Add(holdWindow)

	r.Status = RequestAccepted
	r.AcceptedAt = &acceptedAt
	r.ReservationExpiresAt = &expiresAt
	r.UpdatedAt = acceptedAt

	return r, nil
}

// Reject moves a pending request to rejected. Rejection never touches
// inventory: only Accept consumes a copy, so rejecting before acceptance
// is a pure status change.
func (r BookRequest) Reject(now time.Time) (BookRequest, error) {
	if r.Status != RequestPending {
		return r, ErrInvalidStateTransition
	}

	r.Status = RequestRejected
	r.UpdatedAt = ToTimestamp(now)

	return r, nil
}

// MarkIssued moves an accepted request to issued, passing ownership of the
// reservation to the lending ledger.
func (r BookRequest) MarkIssued(now time.Time) (BookRequest, error) {
	if r.Status != RequestAccepted {
		return r, ErrInvalidStateTransition
	}

	r.Status = RequestIssued
	r.UpdatedAt = ToTimestamp(now)

	return r, nil
}

// Expire cancels an accepted reservation whose hold window elapsed, moving
// the request to rejected. The released copy is the caller's to return.
func (r BookRequest) Expire(now time.Time) (BookRequest, error) {
	if r.Status != RequestAccepted {
		return r, ErrInvalidStateTransition
	}

	r.Status = RequestRejected
	r.UpdatedAt = ToTimestamp(now)

	return r, nil
}

// ReservationExpired reports whether the reservation window has elapsed at
// the given instant. A request without a stamped window never expires.
func (r BookRequest) ReservationExpired(now time.Time) bool {
	if r.ReservationExpiresAt == nil {
		return false
	}

	return ToTimestamp(now).After(*r.ReservationExpiresAt)
}
