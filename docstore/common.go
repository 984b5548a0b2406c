package docstore

import (
	"errors"
)

var (
	// ErrNotFound is returned when no document exists for the given collection and ID.
	ErrNotFound = errors.New("document not found")

	// ErrConcurrencyConflict is returned when a write batch observes a stale document version.
	ErrConcurrencyConflict = errors.New("concurrency conflict, document version did not match")

	// ErrDuplicateDocument is returned when an insert targets an ID that already exists.
	ErrDuplicateDocument = errors.New("document already exists")

	// ErrStoreUnavailable is returned when the backing store fails for transient,
	// non-business reasons (network, timeouts, connection loss).
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrEmptyCollectionName is returned when an empty collection name is supplied.
	ErrEmptyCollectionName = errors.New("empty collection name supplied")

	// ErrEmptyDocumentID is returned when an empty document ID is supplied.
	ErrEmptyDocumentID = errors.New("empty document id supplied")

	// ErrNilDatabaseConnection is returned when a nil database handle is supplied to an engine factory.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when an empty table name is supplied to an engine option.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrEmptyWriteBatch is returned when Commit is called without any writes.
	ErrEmptyWriteBatch = errors.New("write batch must contain at least one write")
)

// VersionUint is a type alias for uint, representing a document's version counter.
// Version 0 means "not yet persisted"; the first committed version is 1.
type VersionUint = uint
