package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/docstore/memoryengine"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/inventory"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func givenInventory(t *testing.T) *inventory.Store {
	t.Helper()

	store, err := inventory.BuildStore(
		memoryengine.NewDocumentStore(),
		inventory.WithClock(fixedClock),
		inventory.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	return store
}

func givenBookInCatalog(t *testing.T, store *inventory.Store, totalCopies int) core.Book {
	t.Helper()

	book, err := core.BuildBook("978-0134190440", "The Go Programming Language", totalCopies, 0, 20.0)
	require.NoError(t, err)
	require.NoError(t, store.AddBook(context.Background(), book))

	return book
}

func Test_BuildStore_Fails_WithNilDocumentStore(t *testing.T) {
	// act
	_, err := inventory.BuildStore(nil)

	// assert
	assert.ErrorIs(t, err, inventory.ErrNilStore)
}

func Test_Inventory_AddBook_Fails_WhenISBNIsAlreadyRegistered(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 3)

	// act
	err := store.AddBook(context.Background(), book)

	// assert
	assert.ErrorIs(t, err, docstore.ErrDuplicateDocument)
}

func Test_Inventory_BookByISBN_Fails_WhenISBNIsUnknown(t *testing.T) {
	// arrange
	store := givenInventory(t)

	// act
	_, err := store.BookByISBN(context.Background(), "978-0000000000")

	// assert
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func Test_Inventory_ReserveCopy_DecrementsAvailability(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 3)

	// act
	err := store.ReserveCopy(context.Background(), book.ISBN)

	// assert
	require.NoError(t, err)
	reloaded, err := store.BookByISBN(context.Background(), book.ISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.AvailableCopies())
}

func Test_Inventory_ReserveCopy_Fails_WhenInventoryIsExhausted(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 1)
	require.NoError(t, store.ReserveCopy(context.Background(), book.ISBN))

	// act
	err := store.ReserveCopy(context.Background(), book.ISBN)

	// assert
	assert.ErrorIs(t, err, core.ErrInventoryExhausted)
}

func Test_Inventory_ReleaseCopy_RestoresAvailability(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 2)
	require.NoError(t, store.ReserveCopy(context.Background(), book.ISBN))

	// act
	err := store.ReleaseCopy(context.Background(), book.ISBN)

	// assert
	require.NoError(t, err)
	reloaded, err := store.BookByISBN(context.Background(), book.ISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.AvailableCopies())
}

func Test_Inventory_MarkUnavailable_Fails_WhenCountExceedsAvailableCopies(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 2)

	// act
	err := store.MarkUnavailable(context.Background(), book.ISBN, 3)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidCount)
}

func Test_Inventory_MarkUnavailableThenAvailable_RoundTrips(t *testing.T) {
	// arrange
	store := givenInventory(t)
	book := givenBookInCatalog(t, store, 5)

	// act
	require.NoError(t, store.MarkUnavailable(context.Background(), book.ISBN, 2))
	require.NoError(t, store.MarkAvailable(context.Background(), book.ISBN, 2))

	// assert
	reloaded, err := store.BookByISBN(context.Background(), book.ISBN)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.AvailableCopies())
	assert.Equal(t, 0, reloaded.UnavailableCopies)
}

func Test_Inventory_Catalog_ListsAllTitles(t *testing.T) {
	// arrange
	store := givenInventory(t)
	givenBookInCatalog(t, store, 3)
	other, err := core.BuildBook("978-0201633610", "Design Patterns", 2, 0, 35.0)
	require.NoError(t, err)
	require.NoError(t, store.AddBook(context.Background(), other))

	// act
	catalog, err := store.Catalog(context.Background())

	// assert
	require.NoError(t, err)
	assert.Len(t, catalog, 2)
}

func Test_Inventory_ConcurrentReservations_NeverOversellTheLastCopies(t *testing.T) {
	// arrange
	store, err := inventory.BuildStore(
		memoryengine.NewDocumentStore(),
		inventory.WithClock(fixedClock),
		inventory.WithRetryOptions(shell.WithMaxAttempts(50), shell.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)
	book := givenBookInCatalog(t, store, 5)

	// act
	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.ReserveCopy(context.Background(), book.ISBN); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	// assert
	assert.Len(t, successes, 5)
	reloaded, err := store.BookByISBN(context.Background(), book.ISBN)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.AvailableCopies())
}
