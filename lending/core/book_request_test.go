package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/lending/core"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func Test_BuildBookRequest_StartsPending(t *testing.T) {
	// act
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)

	// assert
	assert.Equal(t, core.RequestPending, request.Status)
	assert.Equal(t, core.ToTimestamp(fixedNow), request.CreatedAt)
	assert.Nil(t, request.AcceptedAt)
	assert.Nil(t, request.ReservationExpiresAt)
}

func Test_BookRequest_Accept_StampsReservationWindow(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)

	// act
	accepted, err := request.Accept(12*time.Hour, fixedNow)

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.RequestAccepted, accepted.Status)
	require.NotNil(t, accepted.ReservationExpiresAt)
	assert.Equal(t, core.ToTimestamp(fixedNow).Add(12*time.Hour), *accepted.ReservationExpiresAt)
}

func Test_BookRequest_Accept_Fails_WhenAlreadyDecided(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)
	rejected, err := request.Reject(fixedNow)
	require.NoError(t, err)

	// act
	_, err = rejected.Accept(12*time.Hour, fixedNow)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_BookRequest_Reject_Fails_WhenAlreadyAccepted(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)
	accepted, err := request.Accept(12*time.Hour, fixedNow)
	require.NoError(t, err)

	// act
	_, err = accepted.Reject(fixedNow)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_BookRequest_MarkIssued_Fails_WhenNotAccepted(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)

	// act
	_, err := request.MarkIssued(fixedNow)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_BookRequest_ReservationExpired_AfterWindowElapses(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)
	accepted, err := request.Accept(12*time.Hour, fixedNow)
	require.NoError(t, err)

	// assert
	assert.False(t, accepted.ReservationExpired(fixedNow.Add(12*time.Hour)))
	assert.True(t, accepted.ReservationExpired(fixedNow.Add(12*time.Hour+time.Second)))
}

func Test_BookRequest_ReservationExpired_IsFalse_WithoutStampedWindow(t *testing.T) {
	// arrange
	request := core.BuildBookRequest("req-1", "member-1", "978-0134190440", 0, fixedNow)

	// assert
	assert.False(t, request.ReservationExpired(fixedNow.AddDate(1, 0, 0)))
}
