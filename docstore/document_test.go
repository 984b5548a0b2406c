package docstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore"
)

func Test_BuildDocument_Success(t *testing.T) {
	// arrange
	payload := []byte(`{"ISBN": "978-0134190440", "TotalCopies": 3}`)
	updatedAt := time.Now()

	// act
	doc, err := docstore.BuildDocument("books_catalog", "978-0134190440", 1, payload, updatedAt)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "books_catalog", doc.Collection)
	assert.Equal(t, "978-0134190440", doc.ID)
	assert.Equal(t, docstore.VersionUint(1), doc.Version)
	assert.Equal(t, payload, doc.PayloadJSON)
	assert.Equal(t, updatedAt, doc.UpdatedAt)
}

func Test_BuildDocument_Fails_WhenCollectionIsEmpty(t *testing.T) {
	// act
	_, err := docstore.BuildDocument("", "some-id", 1, []byte(`{}`), time.Now())

	// assert
	assert.ErrorIs(t, err, docstore.ErrEmptyCollectionName)
}

func Test_BuildDocument_Fails_WhenIDIsEmpty(t *testing.T) {
	// act
	_, err := docstore.BuildDocument("books_catalog", "", 1, []byte(`{}`), time.Now())

	// assert
	assert.ErrorIs(t, err, docstore.ErrEmptyDocumentID)
}

func Test_BuildDocument_Fails_WhenPayloadIsNotValidJSON(t *testing.T) {
	// act
	_, err := docstore.BuildDocument("books_catalog", "some-id", 1, []byte(`{not json`), time.Now())

	// assert
	assert.ErrorIs(t, err, docstore.ErrInvalidPayloadJSON)
}

func Test_InsertOf_UsesZeroExpectedVersion(t *testing.T) {
	// arrange
	doc, err := docstore.BuildDocument("fines", "fine-1", 0, []byte(`{}`), time.Now())
	require.NoError(t, err)

	// act
	write := docstore.InsertOf(doc)

	// assert
	assert.Equal(t, docstore.VersionUint(0), write.ExpectedVersion)
}

func Test_UpdateOf_GuardsOnCurrentVersion(t *testing.T) {
	// arrange
	doc, err := docstore.BuildDocument("transactions", "tx-1", 4, []byte(`{}`), time.Now())
	require.NoError(t, err)

	// act
	write := docstore.UpdateOf(doc)

	// assert
	assert.Equal(t, docstore.VersionUint(4), write.ExpectedVersion)
}
