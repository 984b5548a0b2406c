package sqliteengine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/docstore/sqliteengine"
)

const schema = `
CREATE TABLE documents (
    collection TEXT    NOT NULL,
    id         TEXT    NOT NULL,
    version    INTEGER NOT NULL,
    payload    TEXT    NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (collection, id)
);
`

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func givenStore(t *testing.T) *sqliteengine.DocumentStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)

	store, err := sqliteengine.NewDocumentStore(db)
	require.NoError(t, err)

	return store
}

func givenDocument(t *testing.T, id string, version docstore.VersionUint, payload string) docstore.Document {
	t.Helper()

	doc, err := docstore.BuildDocument("books_catalog", id, version, []byte(payload), fixedNow)
	require.NoError(t, err)

	return doc
}

func Test_NewDocumentStore_Fails_WithNilHandle(t *testing.T) {
	// act
	_, err := sqliteengine.NewDocumentStore(nil)

	// assert
	assert.ErrorIs(t, err, docstore.ErrNilDatabaseConnection)
}

func Test_NewDocumentStore_Fails_WithEmptyTableName(t *testing.T) {
	// arrange
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// act
	_, err = sqliteengine.NewDocumentStore(db, sqliteengine.WithTableName(""))

	// assert
	assert.ErrorIs(t, err, docstore.ErrEmptyTableName)
}

func Test_SQLiteStore_InsertAndLoad_RoundTrips(t *testing.T) {
	// arrange
	store := givenStore(t)
	doc := givenDocument(t, "isbn-1", 0, `{"Title": "The Go Programming Language"}`)

	// act
	err := store.Commit(context.Background(), docstore.InsertOf(doc))

	// assert
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "books_catalog", "isbn-1")
	require.NoError(t, err)
	assert.Equal(t, docstore.VersionUint(1), loaded.Version)
	assert.JSONEq(t, `{"Title": "The Go Programming Language"}`, string(loaded.PayloadJSON))
}

func Test_SQLiteStore_Load_Fails_ForUnknownDocument(t *testing.T) {
	// arrange
	store := givenStore(t)

	// act
	_, err := store.Load(context.Background(), "books_catalog", "isbn-unknown")

	// assert
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func Test_SQLiteStore_Insert_Fails_ForDuplicateIdentity(t *testing.T) {
	// arrange
	store := givenStore(t)
	doc := givenDocument(t, "isbn-1", 0, `{"Title": "First"}`)
	require.NoError(t, store.Commit(context.Background(), docstore.InsertOf(doc)))

	// act
	err := store.Commit(context.Background(), docstore.InsertOf(doc))

	// assert
	assert.ErrorIs(t, err, docstore.ErrDuplicateDocument)
}

func Test_SQLiteStore_Update_Fails_OnStaleVersion(t *testing.T) {
	// arrange
	store := givenStore(t)
	doc := givenDocument(t, "isbn-1", 0, `{"Title": "First"}`)
	require.NoError(t, store.Commit(context.Background(), docstore.InsertOf(doc)))

	fresh, err := store.Load(context.Background(), "books_catalog", "isbn-1")
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), docstore.UpdateOf(fresh)))

	// act: second update with the same, now stale, version
	err = store.Commit(context.Background(), docstore.UpdateOf(fresh))

	// assert
	assert.ErrorIs(t, err, docstore.ErrConcurrencyConflict)
}

func Test_SQLiteStore_Batch_IsAllOrNothing(t *testing.T) {
	// arrange
	store := givenStore(t)
	existing := givenDocument(t, "isbn-1", 0, `{"Title": "First"}`)
	require.NoError(t, store.Commit(context.Background(), docstore.InsertOf(existing)))

	fresh, err := store.Load(context.Background(), "books_catalog", "isbn-1")
	require.NoError(t, err)

	stale := fresh
	stale.Version = 7 // wrong guard, must sink the whole batch

	newDoc := givenDocument(t, "isbn-2", 0, `{"Title": "Second"}`)

	// act
	err = store.Commit(context.Background(), docstore.UpdateOf(stale), docstore.InsertOf(newDoc))

	// assert
	assert.ErrorIs(t, err, docstore.ErrConcurrencyConflict)

	_, err = store.Load(context.Background(), "books_catalog", "isbn-2")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func Test_SQLiteStore_ListMatching_FiltersOnPayloadFields(t *testing.T) {
	// arrange
	store := givenStore(t)
	pending := givenDocument(t, "req-1", 0, `{"Status": "pending"}`)
	accepted := givenDocument(t, "req-2", 0, `{"Status": "accepted"}`)
	require.NoError(t, store.Commit(context.Background(), docstore.InsertOf(pending), docstore.InsertOf(accepted)))

	// act
	matching, err := store.ListMatching(context.Background(), "books_catalog", docstore.P("Status", "pending"))

	// assert
	require.NoError(t, err)
	require.Len(t, matching, 1)
	assert.Equal(t, "req-1", matching[0].ID)
}

func Test_SQLiteStore_Subscribe_DeliversCommittedDocuments(t *testing.T) {
	// arrange
	store := givenStore(t)

	var received []docstore.Document
	cancel := store.Subscribe("books_catalog", func(doc docstore.Document) {
		received = append(received, doc)
	})
	defer cancel()

	// act
	doc := givenDocument(t, "isbn-1", 0, `{"Title": "First"}`)
	require.NoError(t, store.Commit(context.Background(), docstore.InsertOf(doc)))

	// assert
	require.Len(t, received, 1)
	assert.Equal(t, docstore.VersionUint(1), received[0].Version)
}
