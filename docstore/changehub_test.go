package docstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore"
)

func Test_ChangeHub_DeliversToMatchingCollectionOnly(t *testing.T) {
	// arrange
	hub := docstore.NewChangeHub()

	var booksSeen, finesSeen []string
	hub.Subscribe("books_catalog", func(doc docstore.Document) {
		booksSeen = append(booksSeen, doc.ID)
	})
	hub.Subscribe("fines", func(doc docstore.Document) {
		finesSeen = append(finesSeen, doc.ID)
	})

	doc, err := docstore.BuildDocument("books_catalog", "isbn-1", 1, []byte(`{}`), time.Now())
	require.NoError(t, err)

	// act
	hub.Publish(doc)

	// assert
	assert.Equal(t, []string{"isbn-1"}, booksSeen)
	assert.Empty(t, finesSeen)
}

func Test_ChangeHub_CancelStopsDelivery(t *testing.T) {
	// arrange
	hub := docstore.NewChangeHub()

	seen := 0
	cancel := hub.Subscribe("transactions", func(docstore.Document) {
		seen++
	})

	doc, err := docstore.BuildDocument("transactions", "tx-1", 1, []byte(`{}`), time.Now())
	require.NoError(t, err)

	// act
	hub.Publish(doc)
	cancel()
	cancel() // safe to call twice
	hub.Publish(doc)

	// assert
	assert.Equal(t, 1, seen)
}
