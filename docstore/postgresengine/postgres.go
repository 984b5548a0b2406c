package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/docstore/postgresengine/internal/adapters"
)

const (
	defaultDocumentTableName = "documents"

	logMsgBuildSelectQueryFailed  = "failed to build select query"
	logMsgBuildWriteQueryFailed   = "failed to build write statement"
	logMsgDBQueryFailed           = "database query execution failed"
	logMsgDBExecFailed            = "database execution failed during commit"
	logMsgBeginTxFailed           = "failed to begin transaction"
	logMsgCommitTxFailed          = "failed to commit transaction"
	logMsgRollbackTxFailed        = "failed to roll back transaction"
	logMsgCloseRowsFailed         = "failed to close database rows"
	logMsgScanRowFailed           = "failed to scan database row"
	logMsgBuildDocumentFailed     = "failed to build document from database row"
	logMsgRowsAffectedFailed      = "failed to get rows affected count"
	logMsgLoadCompleted           = "load completed"
	logMsgListCompleted           = "list completed"
	logMsgBatchCommitted          = "write batch committed"
	logMsgConcurrencyConflict     = "concurrency conflict detected"
	logMsgDuplicateDocument       = "duplicate document detected"
	logMsgSQLExecuted             = "executed sql for: "
	logMsgOperation               = "docstore operation: "
	logAttrError                  = "error"
	logAttrQuery                  = "query"
	logAttrCollection             = "collection"
	logAttrDocumentID             = "document_id"
	logAttrDocumentCount          = "document_count"
	logAttrWriteCount             = "write_count"
	logAttrDurationMS             = "duration_ms"
	logAttrExpectedVersion        = "expected_version"
	logActionLoad                 = "load"
	logActionList                 = "list"
	logActionCommit               = "commit"
	colCollection                 = "collection"
	colID                         = "id"
	colVersion                    = "version"
	colPayload                    = "payload"
	colUpdatedAt                  = "updated_at"
	dialectPostgres               = "postgres"
	castJsonb                     = "?::jsonb"
	jsonbContainsPayloadPredicate = `%s @> '{"%s": "%s"}'`
)

// ErrBuildingQueryFailed is returned when a SQL statement cannot be built.
var ErrBuildingQueryFailed = errors.New("building sql statement failed")

type sqlQueryString = string

// DocumentStore is the Postgres implementation of the docstore contract.
// Documents live in a single table keyed by (collection, id) with a JSONB
// payload and a version counter; every write batch runs inside one database
// transaction guarded by compare-and-swap version checks.
type DocumentStore struct {
	db                adapters.DBAdapter
	documentTableName string
	changeHub         *docstore.ChangeHub
	logger            Logger
	contextualLogger  ContextualLogger
	metricsCollector  MetricsCollector
	tracingCollector  TracingCollector
}

// NewDocumentStoreFromPGXPool creates a new DocumentStore using a pgx Pool with optional configuration.
func NewDocumentStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewPGXAdapter(db), options...)
}

// NewDocumentStoreFromSQLDB creates a new DocumentStore using a sql.DB with optional configuration.
func NewDocumentStoreFromSQLDB(db *sql.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLAdapter(db), options...)
}

// NewDocumentStoreFromSQLX creates a new DocumentStore using a sqlx.DB with optional configuration.
func NewDocumentStoreFromSQLX(db *sqlx.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLXAdapter(db), options...)
}

func newDocumentStore(adapter adapters.DBAdapter, options ...Option) (*DocumentStore, error) {
	ds := &DocumentStore{
		db:                adapter,
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
// Returns docstore.ErrNotFound when no such document exists.
func (ds *DocumentStore) Load(ctx context.Context, collection string, id string) (docstore.Document, error) {
	var empty docstore.Document

	if collection == "" {
		return empty, docstore.ErrEmptyCollectionName
	}

	if id == "" {
		return empty, docstore.ErrEmptyDocumentID
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(ds.documentTableName).
		Select(colVersion, colPayload, colUpdatedAt).
		Where(goqu.Ex{colCollection: collection, colID: id})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildSelectQueryFailed, toSQLErr)
		return empty, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	ctx, span := ds.startTraceSpan(ctx, logActionLoad, map[string]string{logAttrCollection: collection, logAttrDocumentID: id})

	rows, duration, queryErr := ds.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		ds.finishTraceSpan(span, statusError)
		return empty, queryErr
	}
	defer ds.closeRows(ctx, rows)

	if !rows.Next() {
		ds.finishTraceSpan(span, statusNotFound)
		return empty, docstore.ErrNotFound
	}

	doc, scanErr := ds.scanDocument(ctx, rows, collection, id)
	if scanErr != nil {
		ds.finishTraceSpan(span, statusError)
		return empty, scanErr
	}

	ds.finishTraceSpan(span, statusSuccess)
	ds.recordDurationMetricsContext(ctx, metricLoadDuration, duration, logActionLoad, statusSuccess)
	ds.logOperation(ctx, logMsgLoadCompleted, logAttrCollection, collection, logAttrDurationMS, toMilliseconds(duration))

	return doc, nil
}

// List retrieves all documents of a collection ordered by ID.
func (ds *DocumentStore) List(ctx context.Context, collection string) (docstore.Documents, error) {
	return ds.ListMatching(ctx, collection)
}

// ListMatching retrieves all documents of a collection whose JSONB payload
// contains every given key/value pair, ordered by ID.
func (ds *DocumentStore) ListMatching(ctx context.Context, collection string, predicates ...docstore.Predicate) (docstore.Documents, error) {
	if collection == "" {
		return nil, docstore.ErrEmptyCollectionName
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(ds.documentTableName).
		Select(colID, colVersion, colPayload, colUpdatedAt).
		Where(goqu.Ex{colCollection: collection}).
		Order(goqu.I(colID).Asc())

	for _, predicate := range predicates {
		selectStmt = selectStmt.Where(
			goqu.L(fmt.Sprintf(jsonbContainsPayloadPredicate, colPayload, predicate.Key(), predicate.Val())),
		)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildSelectQueryFailed, toSQLErr)
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	ctx, span := ds.startTraceSpan(ctx, logActionList, map[string]string{logAttrCollection: collection})

	rows, duration, queryErr := ds.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		ds.finishTraceSpan(span, statusError)
		return nil, queryErr
	}
	defer ds.closeRows(ctx, rows)

	docs := make(docstore.Documents, 0)

	for rows.Next() {
		var id string
		var version int64
		var payload []byte
		var updatedAt time.Time

		if scanErr := rows.Scan(&id, &version, &payload, &updatedAt); scanErr != nil {
			ds.logError(ctx, logMsgScanRowFailed, scanErr)
			ds.finishTraceSpan(span, statusError)
			return nil, errors.Join(docstore.ErrStoreUnavailable, scanErr)
		}

		doc, buildErr := docstore.BuildDocument(collection, id, docstore.VersionUint(version), payload, updatedAt)
		if buildErr != nil {
			ds.logError(ctx, logMsgBuildDocumentFailed, buildErr, logAttrDocumentID, id)
			ds.finishTraceSpan(span, statusError)
			return nil, buildErr
		}

		docs = append(docs, doc)
	}

	ds.finishTraceSpan(span, statusSuccess)
	ds.recordDurationMetricsContext(ctx, metricListDuration, duration, logActionList, statusSuccess)
	ds.logOperation(ctx, logMsgListCompleted,
		logAttrCollection, collection,
		logAttrDocumentCount, len(docs),
		logAttrDurationMS, toMilliseconds(duration))

	return docs, nil
}

// Commit applies the write batch atomically on one database transaction.
//
// Inserts (expected version 0) use INSERT .. ON CONFLICT DO NOTHING; updates
// use a compare-and-swap UPDATE guarded by the expected version. Any statement
// affecting zero rows aborts the whole transaction:
// docstore.ErrDuplicateDocument for inserts, docstore.ErrConcurrencyConflict
// for updates. Committed documents are published to the change feed.
func (ds *DocumentStore) Commit(ctx context.Context, write docstore.Write, additionalWrites ...docstore.Write) error {
	allWrites := append([]docstore.Write{write}, additionalWrites...)

	statements, buildErr := ds.buildWriteStatements(ctx, allWrites)
	if buildErr != nil {
		return buildErr
	}

	ctx, span := ds.startTraceSpan(ctx, logActionCommit, map[string]string{logAttrWriteCount: fmt.Sprintf("%d", len(allWrites))})

	start := time.Now()
	execErr := ds.executeWriteStatements(ctx, allWrites, statements)
	duration := time.Since(start)

	if execErr != nil {
		ds.finishTraceSpan(span, statusFor(execErr))
		ds.recordConflictMetrics(ctx, execErr)
		return execErr
	}

	ds.finishTraceSpan(span, statusSuccess)
	ds.recordDurationMetricsContext(ctx, metricCommitDuration, duration, logActionCommit, statusSuccess)
	ds.logOperation(ctx, logMsgBatchCommitted,
		logAttrWriteCount, len(allWrites),
		logAttrDurationMS, toMilliseconds(duration))

	for _, w := range allWrites {
		committed := w.Doc
		committed.Version = w.ExpectedVersion + 1
		ds.changeHub.Publish(committed)
	}

	return nil
}

func (ds *DocumentStore) buildWriteStatements(ctx context.Context, allWrites []docstore.Write) ([]sqlQueryString, error) {
	if len(allWrites) == 0 {
		return nil, docstore.ErrEmptyWriteBatch
	}

	builder := goqu.Dialect(dialectPostgres)
	statements := make([]sqlQueryString, 0, len(allWrites))

	for _, w := range allWrites {
		var stmt sqlQueryString
		var toSQLErr error

		if w.ExpectedVersion == 0 {
			stmt, _, toSQLErr = builder.
				Insert(ds.documentTableName).
				Cols(colCollection, colID, colVersion, colPayload, colUpdatedAt).
				Vals(goqu.Vals{
					w.Doc.Collection,
					w.Doc.ID,
					1,
					goqu.L(castJsonb, string(w.Doc.PayloadJSON)),
					w.Doc.UpdatedAt,
				}).
				OnConflict(goqu.DoNothing()).
				ToSQL()
		} else {
			stmt, _, toSQLErr = builder.
				Update(ds.documentTableName).
				Set(goqu.Record{
					colVersion:   w.ExpectedVersion + 1,
					colPayload:   goqu.L(castJsonb, string(w.Doc.PayloadJSON)),
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
			ds.logError(ctx, logMsgBuildWriteQueryFailed, toSQLErr, logAttrDocumentID, w.Doc.ID)
			return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
		}

		statements = append(statements, stmt)
	}

	return statements, nil
}

func (ds *DocumentStore) executeWriteStatements(ctx context.Context, allWrites []docstore.Write, statements []sqlQueryString) error {
	tx, beginErr := ds.db.Begin(ctx)
	if beginErr != nil {
		ds.logError(ctx, logMsgBeginTxFailed, beginErr)
		return errors.Join(docstore.ErrStoreUnavailable, beginErr)
	}

	for i, stmt := range statements {
		start := time.Now()
		result, execErr := tx.Exec(ctx, stmt)
		ds.logQueryWithDuration(ctx, stmt, logActionCommit, time.Since(start))

		if execErr != nil {
			ds.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, stmt)
			ds.rollback(ctx, tx)
			return errors.Join(docstore.ErrStoreUnavailable, execErr)
		}

		rowsAffected, rowsAffectedErr := result.RowsAffected()
		if rowsAffectedErr != nil {
			ds.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
			ds.rollback(ctx, tx)
			return errors.Join(docstore.ErrStoreUnavailable, rowsAffectedErr)
		}

		if rowsAffected == 1 {
			continue
		}

		ds.rollback(ctx, tx)

		w := allWrites[i]
		if w.ExpectedVersion == 0 {
			ds.logOperation(ctx, logMsgDuplicateDocument,
				logAttrCollection, w.Doc.Collection,
				logAttrDocumentID, w.Doc.ID)

			return docstore.ErrDuplicateDocument
		}

		ds.logOperation(ctx, logMsgConcurrencyConflict,
			logAttrCollection, w.Doc.Collection,
			logAttrDocumentID, w.Doc.ID,
			logAttrExpectedVersion, w.ExpectedVersion)

		return docstore.ErrConcurrencyConflict
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		ds.logError(ctx, logMsgCommitTxFailed, commitErr)
		return errors.Join(docstore.ErrStoreUnavailable, commitErr)
	}

	return nil
}

func (ds *DocumentStore) rollback(ctx context.Context, tx adapters.DBTx) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		ds.logWarn(ctx, logMsgRollbackTxFailed, rollbackErr)
	}
}

// executeQuery executes the SQL query and returns rows with timing information.
func (ds *DocumentStore) executeQuery(ctx context.Context, sqlQuery string) (adapters.DBRows, time.Duration, error) {
	start := time.Now()
	rows, queryErr := ds.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	ds.logQueryWithDuration(ctx, sqlQuery, logActionLoad, duration)

	if queryErr != nil {
		ds.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, duration, errors.Join(docstore.ErrStoreUnavailable, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (ds *DocumentStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		ds.logWarn(ctx, logMsgCloseRowsFailed, closeErr)
	}
}

func (ds *DocumentStore) scanDocument(ctx context.Context, rows adapters.DBRows, collection string, id string) (docstore.Document, error) {
	var version int64
	var payload []byte
	var updatedAt time.Time

	if scanErr := rows.Scan(&version, &payload, &updatedAt); scanErr != nil {
		ds.logError(ctx, logMsgScanRowFailed, scanErr)
		return docstore.Document{}, errors.Join(docstore.ErrStoreUnavailable, scanErr)
	}

	doc, buildErr := docstore.BuildDocument(collection, id, docstore.VersionUint(version), payload, updatedAt)
	if buildErr != nil {
		ds.logError(ctx, logMsgBuildDocumentFailed, buildErr, logAttrDocumentID, id)
		return docstore.Document{}, buildErr
	}

	return doc, nil
}

// Ensure DocumentStore implements the store contracts.
var (
	_ docstore.Store      = (*DocumentStore)(nil)
	_ docstore.ChangeFeed = (*DocumentStore)(nil)
)
