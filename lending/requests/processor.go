// Package requests handles the member-facing borrowing workflow: submitting
// a request, and the librarian's accept/reject decision. Acceptance is the
// single point where a copy is reserved, written together with the request
// status as one atomic batch.
package requests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/settings"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

var (
	// ErrNilStore is returned when a nil document store is supplied.
	ErrNilStore = errors.New("document store must not be nil")

	// ErrNilSettingsProvider is returned when a nil settings provider is supplied.
	ErrNilSettingsProvider = errors.New("settings provider must not be nil")
)

// Processor drives the book request lifecycle.
type Processor struct {
	docs     docstore.Store
	settings *settings.Provider
	clock    shell.Clock
	logger   docstore.Logger
	retry    []shell.RetryOption
}

// Option configures a Processor using the functional options pattern.
type Option func(*Processor) error

// WithClock overrides the clock used for timestamps and expiry checks.
func WithClock(clock shell.Clock) Option {
	return func(p *Processor) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		p.clock = clock

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(p *Processor) error {
		p.logger = logger

		return nil
	}
}

// WithRetryOptions tunes the optimistic-concurrency retry loop.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(p *Processor) error {
		p.retry = options

		return nil
	}
}

// BuildProcessor creates a Processor backed by the given document store.
func BuildProcessor(docs docstore.Store, settingsProvider *settings.Provider, options ...Option) (*Processor, error) {
	if docs == nil {
		return nil, ErrNilStore
	}

	if settingsProvider == nil {
		return nil, ErrNilSettingsProvider
	}

	processor := &Processor{
		docs:     docs,
		settings: settingsProvider,
		clock:    shell.SystemClock,
	}

	for _, option := range options {
		if err := option(processor); err != nil {
			return nil, err
		}
	}

	return processor, nil
}

// Submit records a member's intent to borrow a title. The request carries no
// inventory effect until it is accepted. window is the reservation hold
// window; zero means the settings default applies at acceptance time.
// Fails with ErrNotFound when the ISBN is not in the catalog.
func (p *Processor) Submit(ctx context.Context, memberID core.MemberIDString, bookID core.ISBNString, window time.Duration) (core.BookRequest, error) {
	if _, err := p.docs.Load(ctx, shell.BooksCollection, bookID); err != nil {
		return core.BookRequest{}, err
	}

	request := core.BuildBookRequest(uuid.NewString(), memberID, bookID, window, p.clock())

	doc, err := shell.DocumentFor(shell.BookRequestsCollection, request.ID, 0, request, p.clock())
	if err != nil {
		return core.BookRequest{}, err
	}

	err = shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return p.docs.Commit(ctx, docstore.InsertOf(doc))
	}, p.retry...)
	if err != nil {
		return core.BookRequest{}, err
	}

	return request, nil
}

// Accept decides a pending request in the member's favor and reserves one
// copy of the title, written as one atomic batch. When no copy is available
// the request stays pending and ErrInventoryExhausted surfaces; deciding a
// request twice fails with ErrInvalidStateTransition.
func (p *Processor) Accept(ctx context.Context, requestID core.RequestIDString) (core.BookRequest, error) {
	var accepted core.BookRequest

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		requestDoc, request, err := p.loadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		bookDoc, err := p.docs.Load(ctx, shell.BooksCollection, request.BookID)
		if err != nil {
			return err
		}

		book, err := shell.EntityFrom[core.Book](bookDoc)
		if err != nil {
			return err
		}

		snapshot, err := p.settings.Current(ctx)
		if err != nil {
			return err
		}

		now := p.clock()

		accepted, err = request.Accept(snapshot.HoldWindowFor(request.Window), now)
		if err != nil {
			return err
		}

		reserved, err := book.ReserveCopy()
		if err != nil {
			return err
		}

		changedRequest, err := shell.DocumentFor(shell.BookRequestsCollection, requestID, requestDoc.Version, accepted, now)
		if err != nil {
			return err
		}

		changedBook, err := shell.DocumentFor(shell.BooksCollection, book.ISBN, bookDoc.Version, reserved, now)
		if err != nil {
			return err
		}

		return p.docs.Commit(ctx, docstore.UpdateOf(changedRequest), docstore.UpdateOf(changedBook))
	}, p.retry...)
	if err != nil {
		return core.BookRequest{}, err
	}

	return accepted, nil
}

// Reject decides a pending request against the member. Rejection is a pure
// status change and never touches inventory.
func (p *Processor) Reject(ctx context.Context, requestID core.RequestIDString) (core.BookRequest, error) {
	var rejected core.BookRequest

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		requestDoc, request, err := p.loadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		now := p.clock()

		rejected, err = request.Reject(now)
		if err != nil {
			return err
		}

		changedRequest, err := shell.DocumentFor(shell.BookRequestsCollection, requestID, requestDoc.Version, rejected, now)
		if err != nil {
			return err
		}

		return p.docs.Commit(ctx, docstore.UpdateOf(changedRequest))
	}, p.retry...)
	if err != nil {
		return core.BookRequest{}, err
	}

	return rejected, nil
}

// RequestByID loads a single request.
func (p *Processor) RequestByID(ctx context.Context, requestID core.RequestIDString) (core.BookRequest, error) {
	_, request, err := p.loadRequest(ctx, requestID)

	return request, err
}

// PendingRequests lists every request still awaiting a decision.
func (p *Processor) PendingRequests(ctx context.Context) ([]core.BookRequest, error) {
	docs, err := p.docs.ListMatching(ctx, shell.BookRequestsCollection, docstore.P("Status", string(core.RequestPending)))
	if err != nil {
		return nil, err
	}

	return shell.EntitiesFrom[core.BookRequest](docs)
}

func (p *Processor) loadRequest(ctx context.Context, requestID core.RequestIDString) (docstore.Document, core.BookRequest, error) {
	doc, err := p.docs.Load(ctx, shell.BookRequestsCollection, requestID)
	if err != nil {
		return docstore.Document{}, core.BookRequest{}, err
	}

	request, err := shell.EntityFrom[core.BookRequest](doc)
	if err != nil {
		return docstore.Document{}, core.BookRequest{}, err
	}

	return doc, request, nil
}
