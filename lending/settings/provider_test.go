package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore/memoryengine"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/settings"
)

func Test_BuildProvider_Fails_WithNilDocumentStore(t *testing.T) {
	// act
	_, err := settings.BuildProvider(nil)

	// assert
	assert.ErrorIs(t, err, settings.ErrNilStore)
}

func Test_Provider_Current_YieldsDefaults_WhenNoSnapshotWasEverWritten(t *testing.T) {
	// arrange
	provider, err := settings.BuildProvider(memoryengine.NewDocumentStore())
	require.NoError(t, err)

	// act
	snapshot, err := provider.Current(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.DefaultLibrarySettings(), snapshot)
}

func Test_Provider_Update_PersistsSnapshot(t *testing.T) {
	// arrange
	provider, err := settings.BuildProvider(memoryengine.NewDocumentStore())
	require.NoError(t, err)

	changed := core.DefaultLibrarySettings()
	changed.MaxBorrowingDays = 14
	changed.LateReturnFine = 2.5

	// act
	require.NoError(t, provider.Update(context.Background(), changed))
	snapshot, err := provider.Current(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, changed, snapshot)
}

func Test_Provider_Update_Twice_OverwritesViaVersionGuard(t *testing.T) {
	// arrange
	provider, err := settings.BuildProvider(memoryengine.NewDocumentStore())
	require.NoError(t, err)

	first := core.DefaultLibrarySettings()
	first.MaxBorrowingDays = 14
	second := core.DefaultLibrarySettings()
	second.MaxBorrowingDays = 21

	// act
	require.NoError(t, provider.Update(context.Background(), first))
	require.NoError(t, provider.Update(context.Background(), second))
	snapshot, err := provider.Current(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 21, snapshot.MaxBorrowingDays)
}

func Test_Provider_WithChangeFeed_RefreshesCacheOnCommittedWrites(t *testing.T) {
	// arrange
	docs := memoryengine.NewDocumentStore()

	cached, err := settings.BuildProvider(docs, settings.WithChangeFeed(docs))
	require.NoError(t, err)
	defer cached.Close()

	writer, err := settings.BuildProvider(docs)
	require.NoError(t, err)

	// warm the cache with the defaults
	snapshot, err := cached.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.DefaultLibrarySettings(), snapshot)

	changed := core.DefaultLibrarySettings()
	changed.ReservationDuration = 24 * time.Hour

	// act
	require.NoError(t, writer.Update(context.Background(), changed))
	snapshot, err = cached.Current(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, snapshot.ReservationDuration)
}

func Test_Provider_SettingsChange_NeverAdjustsExistingDueDates(t *testing.T) {
	// arrange
	provider, err := settings.BuildProvider(memoryengine.NewDocumentStore())
	require.NoError(t, err)

	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	before, err := provider.Current(context.Background())
	require.NoError(t, err)

	request := core.BuildBookRequest("req-1", "member-1", "isbn-1", 0, now)
	accepted, err := request.Accept(before.ReservationDuration, now)
	require.NoError(t, err)
	transaction := core.BuildTransaction("txn-1", accepted, before, now)

	changed := before
	changed.MaxBorrowingDays = 30

	// act
	require.NoError(t, provider.Update(context.Background(), changed))

	// assert
	assert.Equal(t, core.ToTimestamp(now).AddDate(0, 0, before.MaxBorrowingDays), transaction.DueDate)
}
