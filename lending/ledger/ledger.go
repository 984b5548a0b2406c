// Package ledger tracks copies in members' possession. Issue hands over the
// copy reserved at acceptance; the closing operations (Return, MarkDamaged,
// MarkLost) write transaction, book and any fine as one atomic batch, so a
// reader can never observe a closed loan whose inventory or fine is missing.
package ledger

import (
	"context"
	"errors"

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

// EventPublisher receives domain events after their write was acknowledged.
// Publishing happens outside the store transaction; a failing publisher
// never rolls back a committed loan.
type EventPublisher interface {
	Publish(ctx context.Context, event core.DomainEvent) error
}

// Ledger drives the loan lifecycle.
type Ledger struct {
	docs      docstore.Store
	settings  *settings.Provider
	clock     shell.Clock
	logger    docstore.Logger
	publisher EventPublisher
	retry     []shell.RetryOption
}

// Option configures a Ledger using the functional options pattern.
type Option func(*Ledger) error

// WithClock overrides the clock used for issue, due and return dates.
func WithClock(clock shell.Clock) Option {
	return func(l *Ledger) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		l.clock = clock

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(l *Ledger) error {
		l.logger = logger

		return nil
	}
}

// WithPublisher attaches an event publisher for post-commit notifications.
func WithPublisher(publisher EventPublisher) Option {
	return func(l *Ledger) error {
		if publisher == nil {
			return errors.New("publisher must not be nil")
		}

		l.publisher = publisher

		return nil
	}
}

// WithRetryOptions tunes the optimistic-concurrency retry loop.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(l *Ledger) error {
		l.retry = options

		return nil
	}
}

// BuildLedger creates a Ledger backed by the given document store.
func BuildLedger(docs docstore.Store, settingsProvider *settings.Provider, options ...Option) (*Ledger, error) {
	if docs == nil {
		return nil, ErrNilStore
	}

	if settingsProvider == nil {
		return nil, ErrNilSettingsProvider
	}

	ledger := &Ledger{
		docs:     docs,
		settings: settingsProvider,
		clock:    shell.SystemClock,
	}

	for _, option := range options {
		if err := option(ledger); err != nil {
			return nil, err
		}
	}

	return ledger, nil
}

// Issue hands the reserved copy over to the member of an accepted request.
// The due date is derived from the settings snapshot in effect right now.
// The copy was already taken out at acceptance, so no second decrement
// happens here. Issuing past the reservation window fails with
// ErrReservationExpired and atomically cancels the reservation: the request
// flips to rejected and the copy returns to circulation.
func (l *Ledger) Issue(ctx context.Context, requestID core.RequestIDString) (core.Transaction, error) {
	var issued core.Transaction

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		requestDoc, err := l.docs.Load(ctx, shell.BookRequestsCollection, requestID)
		if err != nil {
			return err
		}

		request, err := shell.EntityFrom[core.BookRequest](requestDoc)
		if err != nil {
			return err
		}

		now := l.clock()

		if request.ReservationExpired(now) {
			return l.cancelExpiredReservation(ctx, requestDoc, request, now)
		}

		marked, err := request.MarkIssued(now)
		if err != nil {
			return err
		}

		snapshot, err := l.settings.Current(ctx)
		if err != nil {
			return err
		}

		issued = core.BuildTransaction(uuid.NewString(), request, snapshot, now)

		transactionDoc, err := shell.DocumentFor(shell.TransactionsCollection, issued.ID, 0, issued, now)
		if err != nil {
			return err
		}

		changedRequest, err := shell.DocumentFor(shell.BookRequestsCollection, requestID, requestDoc.Version, marked, now)
		if err != nil {
			return err
		}

		return l.docs.Commit(ctx, docstore.InsertOf(transactionDoc), docstore.UpdateOf(changedRequest))
	}, l.retry...)
	if err != nil {
		return core.Transaction{}, err
	}

	l.publish(ctx, core.LoanIssued{
		TransactionID: issued.ID,
		RequestID:     issued.RequestID,
		MemberID:      issued.MemberID,
		BookID:        issued.BookID,
		DueDate:       issued.DueDate,
		HappenedAt:    issued.IssueDate,
	})

	return issued, nil
}

// Return closes an issued loan normally and puts the copy back into
// circulation. A return past the due date records a late fine from the
// current settings snapshot, linked to the loan in the same batch.
func (l *Ledger) Return(ctx context.Context, transactionID core.TransactionIDString) (core.Transaction, error) {
	return l.close(ctx, transactionID, func(transaction core.Transaction, book core.Book, snapshot core.LibrarySettings, now core.Timestamp) (closure, error) {
		closed, err := transaction.Close(core.TransactionReturned, now)
		if err != nil {
			return closure{}, err
		}

		result := closure{transaction: closed, book: book.ReleaseCopy()}

		if daysLate := closed.DaysLate(now); daysLate > 0 {
			result.withFine(core.BuildFine(
				uuid.NewString(),
				closed.MemberID,
				closed.ID,
				core.LateFineAmount(daysLate, snapshot),
				core.FineReasonLate,
				now,
			))
		}

		return result, nil
	})
}

// MarkDamaged closes an issued loan because the copy came back damaged.
// The copy leaves circulation; with replaceCopy the member's replacement
// re-enters it in the same write. A damaged fine is always recorded.
func (l *Ledger) MarkDamaged(ctx context.Context, transactionID core.TransactionIDString, replaceCopy bool) (core.Transaction, error) {
	return l.close(ctx, transactionID, func(transaction core.Transaction, book core.Book, snapshot core.LibrarySettings, now core.Timestamp) (closure, error) {
		closed, err := transaction.Close(core.TransactionDamaged, now)
		if err != nil {
			return closure{}, err
		}

		changedBook := book.CopyWentMissing()
		if replaceCopy {
			changedBook = changedBook.ReleaseCopy()
		}

		result := closure{transaction: closed, book: changedBook}
		result.withFine(core.BuildFine(
			uuid.NewString(),
			closed.MemberID,
			closed.ID,
			core.DamagedFineAmount(book.Cost, snapshot),
			core.FineReasonDamaged,
			now,
		))

		return result, nil
	})
}

// MarkLost closes an issued loan because the copy is gone. The copy leaves
// circulation and a lost fine is recorded.
func (l *Ledger) MarkLost(ctx context.Context, transactionID core.TransactionIDString) (core.Transaction, error) {
	return l.close(ctx, transactionID, func(transaction core.Transaction, book core.Book, snapshot core.LibrarySettings, now core.Timestamp) (closure, error) {
		closed, err := transaction.Close(core.TransactionLost, now)
		if err != nil {
			return closure{}, err
		}

		result := closure{transaction: closed, book: book.CopyWentMissing()}
		result.withFine(core.BuildFine(
			uuid.NewString(),
			closed.MemberID,
			closed.ID,
			core.LostFineAmount(book.Cost, snapshot),
			core.FineReasonLost,
			now,
		))

		return result, nil
	})
}

// TransactionByID loads a single loan.
func (l *Ledger) TransactionByID(ctx context.Context, transactionID core.TransactionIDString) (core.Transaction, error) {
	doc, err := l.docs.Load(ctx, shell.TransactionsCollection, transactionID)
	if err != nil {
		return core.Transaction{}, err
	}

	return shell.EntityFrom[core.Transaction](doc)
}

// IssuedCount reports how many loans are currently open.
func (l *Ledger) IssuedCount(ctx context.Context) (int, error) {
	docs, err := l.docs.ListMatching(ctx, shell.TransactionsCollection, docstore.P("Status", string(core.TransactionIssued)))
	if err != nil {
		return 0, err
	}

	return len(docs), nil
}

// OverdueCount reports how many open loans have passed their due date at
// the given instant.
func (l *Ledger) OverdueCount(ctx context.Context, at core.Timestamp) (int, error) {
	docs, err := l.docs.ListMatching(ctx, shell.TransactionsCollection, docstore.P("Status", string(core.TransactionIssued)))
	if err != nil {
		return 0, err
	}

	transactions, err := shell.EntitiesFrom[core.Transaction](docs)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, transaction := range transactions {
		if transaction.IsOverdue(at) {
			count++
		}
	}

	return count, nil
}

// closure is the outcome of a closing decision: the terminal transaction,
// the adjusted book, and at most one fine.
type closure struct {
	transaction core.Transaction
	book        core.Book
	fine        *core.Fine
}

func (c *closure) withFine(fine core.Fine) {
	c.transaction = c.transaction.WithFine(fine.ID)
	c.fine = &fine
}

type closeFunc func(transaction core.Transaction, book core.Book, snapshot core.LibrarySettings, now core.Timestamp) (closure, error)

// close runs one closing operation: load transaction and book, let decide
// produce the terminal state, and commit everything as one batch.
func (l *Ledger) close(ctx context.Context, transactionID core.TransactionIDString, decide closeFunc) (core.Transaction, error) {
	var result closure

	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		transactionDoc, err := l.docs.Load(ctx, shell.TransactionsCollection, transactionID)
		if err != nil {
			return err
		}

		transaction, err := shell.EntityFrom[core.Transaction](transactionDoc)
		if err != nil {
			return err
		}

		bookDoc, err := l.docs.Load(ctx, shell.BooksCollection, transaction.BookID)
		if err != nil {
			return err
		}

		book, err := shell.EntityFrom[core.Book](bookDoc)
		if err != nil {
			return err
		}

		snapshot, err := l.settings.Current(ctx)
		if err != nil {
			return err
		}

		now := core.ToTimestamp(l.clock())

		result, err = decide(transaction, book, snapshot, now)
		if err != nil {
			return err
		}

		changedTransaction, err := shell.DocumentFor(shell.TransactionsCollection, transactionID, transactionDoc.Version, result.transaction, now)
		if err != nil {
			return err
		}

		changedBook, err := shell.DocumentFor(shell.BooksCollection, book.ISBN, bookDoc.Version, result.book, now)
		if err != nil {
			return err
		}

		writes := []docstore.Write{docstore.UpdateOf(changedBook)}

		if result.fine != nil {
			fineDoc, err := shell.DocumentFor(shell.FinesCollection, result.fine.ID, 0, *result.fine, now)
			if err != nil {
				return err
			}

			writes = append(writes, docstore.InsertOf(fineDoc))
		}

		return l.docs.Commit(ctx, docstore.UpdateOf(changedTransaction), writes...)
	}, l.retry...)
	if err != nil {
		return core.Transaction{}, err
	}

	l.publishClosure(ctx, result)

	return result.transaction, nil
}

// cancelExpiredReservation rejects the request and releases the reserved
// copy as one batch, then surfaces ErrReservationExpired to the caller.
func (l *Ledger) cancelExpiredReservation(ctx context.Context, requestDoc docstore.Document, request core.BookRequest, now core.Timestamp) error {
	bookDoc, err := l.docs.Load(ctx, shell.BooksCollection, request.BookID)
	if err != nil {
		return err
	}

	book, err := shell.EntityFrom[core.Book](bookDoc)
	if err != nil {
		return err
	}

	expired, err := request.Expire(now)
	if err != nil {
		return err
	}

	changedRequest, err := shell.DocumentFor(shell.BookRequestsCollection, request.ID, requestDoc.Version, expired, now)
	if err != nil {
		return err
	}

	changedBook, err := shell.DocumentFor(shell.BooksCollection, book.ISBN, bookDoc.Version, book.ReleaseCopy(), now)
	if err != nil {
		return err
	}

	if err := l.docs.Commit(ctx, docstore.UpdateOf(changedRequest), docstore.UpdateOf(changedBook)); err != nil {
		return err
	}

	return core.ErrReservationExpired
}

func (l *Ledger) publishClosure(ctx context.Context, result closure) {
	fineID := ""
	if result.fine != nil {
		fineID = result.fine.ID
	}

	l.publish(ctx, core.LoanClosed{
		TransactionID: result.transaction.ID,
		MemberID:      result.transaction.MemberID,
		BookID:        result.transaction.BookID,
		Status:        result.transaction.Status,
		FineID:        fineID,
		HappenedAt:    *result.transaction.ReturnDate,
	})

	if result.fine != nil {
		l.publish(ctx, core.FineRecorded{
			FineID:        result.fine.ID,
			MemberID:      result.fine.MemberID,
			TransactionID: result.fine.TransactionID,
			Amount:        result.fine.Amount,
			Reason:        result.fine.Reason,
			HappenedAt:    result.fine.CreatedAt,
		})
	}
}

func (l *Ledger) publish(ctx context.Context, event core.DomainEvent) {
	if l.publisher == nil {
		return
	}

	if err := l.publisher.Publish(ctx, event); err != nil && l.logger != nil {
		l.logger.Warn("publishing domain event failed", "event_type", event.EventType(), "error", err)
	}
}
