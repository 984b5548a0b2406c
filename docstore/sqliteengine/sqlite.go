// Package sqliteengine implements the docstore contract on SQLite for
// embedded and single-node deployments. It mirrors the Postgres engine's
// semantics: a single documents table keyed by (collection, id), per-document
// version counters, and all-or-nothing write batches on one transaction.
//
// Expected schema:
//
//	CREATE TABLE documents (
//	    collection TEXT    NOT NULL,
//	    id         TEXT    NOT NULL,
//	    version    INTEGER NOT NULL,
//	    payload    TEXT    NOT NULL,
//	    updated_at TIMESTAMP NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	_ "github.com/mattn/go-sqlite3"                    // driver import

	"github.com/openshelf/lending-engine-go/docstore"
)

const (
	defaultDocumentTableName = "documents"

	colCollection = "collection"
	colID         = "id"
	colVersion    = "version"
	colPayload    = "payload"
	colUpdatedAt  = "updated_at"

	dialectSQLite = "sqlite3"

	jsonExtractPredicate = `json_extract(%s, '$.%s') = '%s'`
)

// ErrBuildingQueryFailed is returned when a SQL statement cannot be built.
var ErrBuildingQueryFailed = errors.New("building sql statement failed")

// DocumentStore is the SQLite implementation of the docstore contract.
type DocumentStore struct {
	db                *sql.DB
	documentTableName string
	changeHub         *docstore.ChangeHub
	logger            docstore.Logger
}

// Option defines a functional option for configuring DocumentStore.
type Option func(*DocumentStore) error

// WithTableName sets the documents table name for the DocumentStore.
func WithTableName(tableName string) Option {
	return func(ds *DocumentStore) error {
		if tableName == "" {
			return docstore.ErrEmptyTableName
		}

		ds.documentTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the DocumentStore.
func WithLogger(logger docstore.Logger) Option {
	return func(ds *DocumentStore) error {
		ds.logger = logger
		return nil
	}
}

// NewDocumentStore creates a new DocumentStore on an open SQLite handle with optional configuration.
func NewDocumentStore(db *sql.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	ds := &DocumentStore{
		db:                db,
		documentTableName: defaultDocumentTableName,
		changeHub:         docstore.NewChangeHub(),
	}

	for _, option := range options {
		if err := option(ds); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// Subscribe registers fn for all committed documents of the given collection.
func (ds *DocumentStore) Subscribe(collection string, fn func(docstore.Document)) (cancel func()) {
	return ds.changeHub.Subscribe(collection, fn)
}

// Load retrieves a single document by collection and ID.
func (ds *DocumentStore) Load(ctx context.Context, collection string, id string) (docstore.Document, error) {
	var empty docstore.Document

	if collection == "" {
		return empty, docstore.ErrEmptyCollectionName
	}

	if id == "" {
		return empty, docstore.ErrEmptyDocumentID
	}

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectSQLite).
		From(ds.documentTableName).
		Select(colVersion, colPayload, colUpdatedAt).
		Where(goqu.Ex{colCollection: collection, colID: id}).
		ToSQL()
	if toSQLErr != nil {
		return empty, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	var version int64
	var payload []byte
	var updatedAt time.Time

	row := ds.db.QueryRowContext(ctx, sqlQuery)
	if scanErr := row.Scan(&version, &payload, &updatedAt); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return empty, docstore.ErrNotFound
		}

		return empty, errors.Join(docstore.ErrStoreUnavailable, scanErr)
	}

	return docstore.BuildDocument(collection, id, docstore.VersionUint(version), payload, updatedAt)
}

// List retrieves all documents of a collection ordered by ID.
func (ds *DocumentStore) List(ctx context.Context, collection string) (docstore.Documents, error) {
	return ds.ListMatching(ctx, collection)
}

// ListMatching retrieves all documents of a collection whose payload contains
// every given key/value pair, ordered by ID.
func (ds *DocumentStore) ListMatching(ctx context.Context, collection string, predicates ...docstore.Predicate) (docstore.Documents, error) {
	if collection == "" {
		return nil, docstore.ErrEmptyCollectionName
	}

	selectStmt := goqu.Dialect(dialectSQLite).
		From(ds.documentTableName).
		Select(colID, colVersion, colPayload, colUpdatedAt).
		Where(goqu.Ex{colCollection: collection}).
		Order(goqu.I(colID).Asc())

	for _, predicate := range predicates {
		selectStmt = selectStmt.Where(
			goqu.L(fmt.Sprintf(jsonExtractPredicate, colPayload, predicate.Key(), predicate.Val())),
		)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := ds.db.QueryContext(ctx, sqlQuery)
	if queryErr != nil {
		return nil, errors.Join(docstore.ErrStoreUnavailable, queryErr)
	}
	defer ds.closeRows(rows)

	docs := make(docstore.Documents, 0)

	for rows.Next() {
		var id string
		var version int64
		var payload []byte
		var updatedAt time.Time

		if scanErr := rows.Scan(&id, &version, &payload, &updatedAt); scanErr != nil {
			return nil, errors.Join(docstore.ErrStoreUnavailable, scanErr)
		}

		doc, buildErr := docstore.BuildDocument(collection, id, docstore.VersionUint(version), payload, updatedAt)
		if buildErr != nil {
			return nil, buildErr
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Commit applies the write batch atomically on one transaction, with the same
// compare-and-swap semantics as the Postgres engine.
func (ds *DocumentStore) Commit(ctx context.Context, write docstore.Write, additionalWrites ...docstore.Write) error {
	allWrites := append([]docstore.Write{write}, additionalWrites...)

	statements, buildErr := ds.buildWriteStatements(allWrites)
	if buildErr != nil {
		return buildErr
	}

	if execErr := ds.executeWriteStatements(ctx, allWrites, statements); execErr != nil {
		return execErr
	}

	for _, w := range allWrites {
		committed := w.Doc
		committed.Version = w.ExpectedVersion + 1
		ds.changeHub.Publish(committed)
	}

	return nil
}

func (ds *DocumentStore) buildWriteStatements(allWrites []docstore.Write) ([]string, error) {
	if len(allWrites) == 0 {
		return nil, docstore.ErrEmptyWriteBatch
	}

	builder := goqu.Dialect(dialectSQLite)
	statements := make([]string, 0, len(allWrites))

	for _, w := range allWrites {
		var stmt string
		var toSQLErr error

		if w.ExpectedVersion == 0 {
			stmt, _, toSQLErr = builder.
				Insert(ds.documentTableName).
				Cols(colCollection, colID, colVersion, colPayload, colUpdatedAt).
				Vals(goqu.Vals{w.Doc.Collection, w.Doc.ID, 1, string(w.Doc.PayloadJSON), w.Doc.UpdatedAt}).
				OnConflict(goqu.DoNothing()).
				ToSQL()
		} else {
			stmt, _, toSQLErr = builder.
				Update(ds.documentTableName).
				Set(goqu.Record{
					colVersion:   w.ExpectedVersion + 1,
					colPayload:   string(w.Doc.PayloadJSON),
					colUpdatedAt: w.Doc.UpdatedAt,
				}).
				Where(goqu.Ex{
					colCollection: w.Doc.Collection,
					colID:         w.Doc.ID,
					colVersion:    w.ExpectedVersion,
				}).
				ToSQL()
		}

		if toSQLErr != nil {
			return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
		}

		statements = append(statements, stmt)
	}

	return statements, nil
}

func (ds *DocumentStore) executeWriteStatements(ctx context.Context, allWrites []docstore.Write, statements []string) error {
	tx, beginErr := ds.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return errors.Join(docstore.ErrStoreUnavailable, beginErr)
	}

	for i, stmt := range statements {
		result, execErr := tx.ExecContext(ctx, stmt)
		if execErr != nil {
			ds.rollback(tx)
			return errors.Join(docstore.ErrStoreUnavailable, execErr)
		}

		rowsAffected, rowsAffectedErr := result.RowsAffected()
		if rowsAffectedErr != nil {
			ds.rollback(tx)
			return errors.Join(docstore.ErrStoreUnavailable, rowsAffectedErr)
		}

		if rowsAffected == 1 {
			continue
		}

		ds.rollback(tx)

		if allWrites[i].ExpectedVersion == 0 {
			return docstore.ErrDuplicateDocument
		}

		return docstore.ErrConcurrencyConflict
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return errors.Join(docstore.ErrStoreUnavailable, commitErr)
	}

	return nil
}

func (ds *DocumentStore) rollback(tx *sql.Tx) {
	if rollbackErr := tx.Rollback(); rollbackErr != nil && ds.logger != nil {
		ds.logger.Warn("failed to roll back transaction", "error", rollbackErr.Error())
	}
}

func (ds *DocumentStore) closeRows(rows *sql.Rows) {
	if closeErr := rows.Close(); closeErr != nil && ds.logger != nil {
		ds.logger.Warn("failed to close database rows", "error", closeErr.Error())
	}
}

// Ensure DocumentStore implements the store contracts.
var (
	_ docstore.Store      = (*DocumentStore)(nil)
	_ docstore.ChangeFeed = (*DocumentStore)(nil)
)
