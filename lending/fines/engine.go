// Package fines owns fine settlement. Creation happens in two places: the
// ledger folds fines into its atomic closing batches, and Record covers
// standalone penalties a librarian enters by hand. Either way the amount is
// fixed at creation; settlement only ever flips the status.
package fines

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

var (
	// ErrNilStore is returned when a nil document store is supplied.
	ErrNilStore = errors.New("document store must not be nil")

	// ErrNegativeAmount is returned when a fine is recorded with a negative amount.
	ErrNegativeAmount = errors.New("fine amount must not be negative")
)

// Engine drives fine settlement and reporting.
type Engine struct {
	docs   docstore.Store
	clock  shell.Clock
	logger docstore.Logger
	retry  []shell.RetryOption
}

// Option configures an Engine using the functional options pattern.
type Option func(*Engine) error

// WithClock overrides the clock used for creation and settlement stamps.
func WithClock(clock shell.Clock) Option {
	return func(e *Engine) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		e.clock = clock

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger

		return nil
	}
}

// WithRetryOptions tunes the optimistic-concurrency retry loop.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(e *Engine) error {
		e.retry = options

		return nil
	}
}

// BuildEngine creates an Engine backed by the given document store.
func BuildEngine(docs docstore.Store, options ...Option) (*Engine, error) {
	if docs == nil {
		return nil, ErrNilStore
	}

	engine := &Engine{
		docs:  docs,
		clock: shell.SystemClock,
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// Record creates a pending fine against a loan and links it to the
// transaction as one atomic batch. Fails with ErrNotFound when the loan
// does not exist.
func (e *Engine) Record(ctx context.Context, memberID core.MemberIDString, transactionID core.TransactionIDString, amount float64, reason core.FineReason) (core.Fine, error) {
	if amount < 0 {
		return core.Fine{}, ErrNegativeAmount
	}

	if !reason.IsValid() {
		return core.Fine{}, core.ErrInvalidFineReason
	}

	var fine core.Fine

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		transactionDoc, err := e.docs.Load(ctx, shell.TransactionsCollection, transactionID)
		if err != nil {
			return err
		}

		transaction, err := shell.EntityFrom[core.Transaction](transactionDoc)
		if err != nil {
			return err
		}

		now := e.clock()
		fine = core.BuildFine(uuid.NewString(), memberID, transactionID, amount, reason, now)

		fineDoc, err := shell.DocumentFor(shell.FinesCollection, fine.ID, 0, fine, now)
		if err != nil {
			return err
		}

		changedTransaction, err := shell.DocumentFor(shell.TransactionsCollection, transactionID, transactionDoc.Version, transaction.WithFine(fine.ID), now)
		if err != nil {
			return err
		}

		return e.docs.Commit(ctx, docstore.InsertOf(fineDoc), docstore.UpdateOf(changedTransaction))
	}, e.retry...)
	if err != nil {
		return core.Fine{}, err
	}

	return fine, nil
}

// ToggleStatus flips a fine between pending and paid, setting or clearing
// PaidAt. The amount is never recomputed.
func (e *Engine) ToggleStatus(ctx context.Context, fineID core.FineIDString) (core.Fine, error) {
	var toggled core.Fine

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		doc, err := e.docs.Load(ctx, shell.FinesCollection, fineID)
		if err != nil {
			return err
		}

		fine, err := shell.EntityFrom[core.Fine](doc)
		if err != nil {
			return err
		}

		now := e.clock()
		toggled = fine.ToggleStatus(now)

		changedDoc, err := shell.DocumentFor(shell.FinesCollection, fineID, doc.Version, toggled, now)
		if err != nil {
			return err
		}

		return e.docs.Commit(ctx, docstore.UpdateOf(changedDoc))
	}, e.retry...)
	if err != nil {
		return core.Fine{}, err
	}

	return toggled, nil
}

// FineByID loads a single fine.
func (e *Engine) FineByID(ctx context.Context, fineID core.FineIDString) (core.Fine, error) {
	doc, err := e.docs.Load(ctx, shell.FinesCollection, fineID)
	if err != nil {
		return core.Fine{}, err
	}

	return shell.EntityFrom[core.Fine](doc)
}

// FinesForMember lists every fine a member has accumulated.
func (e *Engine) FinesForMember(ctx context.Context, memberID core.MemberIDString) ([]core.Fine, error) {
	docs, err := e.docs.ListMatching(ctx, shell.FinesCollection, docstore.P("MemberID", memberID))
	if err != nil {
		return nil, err
	}

	return shell.EntitiesFrom[core.Fine](docs)
}

// PendingFinesCount reports how many fines still await settlement.
func (e *Engine) PendingFinesCount(ctx context.Context) (int, error) {
	docs, err := e.docs.ListMatching(ctx, shell.FinesCollection, docstore.P("Status", string(core.FinePending)))
	if err != nil {
		return 0, err
	}

	return len(docs), nil
}
