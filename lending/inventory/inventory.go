// Package inventory manages the per-title copy counts of the catalog.
// Every mutation is a single read-modify-write guarded by the book
// document's version counter, so two librarians racing over the last copy
// can never both win.
package inventory

import (
	"context"
	"errors"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

// ErrNilStore is returned when a nil document store is supplied.
var ErrNilStore = errors.New("document store must not be nil")

// Store exposes the catalog's copy accounting.
type Store struct {
	docs   docstore.Store
	clock  shell.Clock
	logger docstore.Logger
	retry  []shell.RetryOption
}

// Option configures a Store using the functional options pattern.
type Option func(*Store) error

// WithClock overrides the clock used to stamp writes.
func WithClock(clock shell.Clock) Option {
	return func(s *Store) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		s.clock = clock

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(s *Store) error {
		s.logger = logger

		return nil
	}
}

// WithRetryOptions tunes the optimistic-concurrency retry loop.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(s *Store) error {
		s.retry = options

		return nil
	}
}

// BuildStore creates an inventory Store backed by the given document store.
func BuildStore(docs docstore.Store, options ...Option) (*Store, error) {
	if docs == nil {
		return nil, ErrNilStore
	}

	store := &Store{
		docs:  docs,
		clock: shell.SystemClock,
	}

	for _, option := range options {
		if err := option(store); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// AddBook registers a new title in the catalog. Registering an ISBN twice
// fails with ErrDuplicateDocument.
func (s *Store) AddBook(ctx context.Context, book core.Book) error {
	doc, err := shell.DocumentFor(shell.BooksCollection, book.ISBN, 0, book, s.clock())
	if err != nil {
		return err
	}

	return shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return s.docs.Commit(ctx, docstore.InsertOf(doc))
	}, s.retry...)
}

// BookByISBN loads a single catalog entry.
func (s *Store) BookByISBN(ctx context.Context, isbn core.ISBNString) (core.Book, error) {
	doc, err := s.docs.Load(ctx, shell.BooksCollection, isbn)
	if err != nil {
		return core.Book{}, err
	}

	return shell.EntityFrom[core.Book](doc)
}

// Catalog lists every registered title.
func (s *Store) Catalog(ctx context.Context) ([]core.Book, error) {
	docs, err := s.docs.List(ctx, shell.BooksCollection)
	if err != nil {
		return nil, err
	}

	return shell.EntitiesFrom[core.Book](docs)
}

// ReserveCopy takes one available copy of the title out of circulation
// for a pending hand-over. Fails with ErrInventoryExhausted when none is
// available, ErrNotFound when the ISBN is unknown.
func (s *Store) ReserveCopy(ctx context.Context, isbn core.ISBNString) error {
	return s.mutate(ctx, isbn, core.Book.ReserveCopy)
}

// ReleaseCopy puts one copy of the title back into circulation.
func (s *Store) ReleaseCopy(ctx context.Context, isbn core.ISBNString) error {
	return s.mutate(ctx, isbn, func(book core.Book) (core.Book, error) {
		return book.ReleaseCopy(), nil
	})
}

// MarkUnavailable pulls count copies from circulation (damage found on the
// shelf, repairs). Fails with ErrInvalidCount outside 1..AvailableCopies().
func (s *Store) MarkUnavailable(ctx context.Context, isbn core.ISBNString, count int) error {
	return s.mutate(ctx, isbn, func(book core.Book) (core.Book, error) {
		return book.MarkUnavailable(count)
	})
}

// MarkAvailable returns count previously pulled copies to circulation.
// Fails with ErrInvalidCount outside 1..UnavailableCopies.
func (s *Store) MarkAvailable(ctx context.Context, isbn core.ISBNString, count int) error {
	return s.mutate(ctx, isbn, func(book core.Book) (core.Book, error) {
		return book.MarkAvailable(count)
	})
}

// mutate runs one guarded read-modify-write cycle for the given title,
// retrying lost version races with fresh reads.
func (s *Store) mutate(ctx context.Context, isbn core.ISBNString, transition func(core.Book) (core.Book, error)) error {
	return shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		doc, err := s.docs.Load(ctx, shell.BooksCollection, isbn)
		if err != nil {
			return err
		}

		book, err := shell.EntityFrom[core.Book](doc)
		if err != nil {
			return err
		}

		changed, err := transition(book)
		if err != nil {
			return err
		}

		changedDoc, err := shell.DocumentFor(shell.BooksCollection, isbn, doc.Version, changed, s.clock())
		if err != nil {
			return err
		}

		return s.docs.Commit(ctx, docstore.UpdateOf(changedDoc))
	}, s.retry...)
}
