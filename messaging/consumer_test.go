package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked         bool
	nacked        bool
	nackedRequeue bool
}

func (a *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.nackedRequeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, _ bool) error {
	return nil
}

func Test_Consumer_Dispatch_Acks_WhenHandlerSucceeds(t *testing.T) {
	// arrange
	consumer := &Consumer{}
	acknowledger := &fakeAcknowledger{}
	var received Delivery

	// act
	consumer.dispatch(context.Background(), amqp.Delivery{
		Acknowledger: acknowledger,
		Type:         "LoanIssued",
		Body:         []byte(`{"TransactionID":"txn-1"}`),
	}, func(_ context.Context, delivery Delivery) error {
		received = delivery
		return nil
	})

	// assert
	assert.True(t, acknowledger.acked)
	assert.False(t, acknowledger.nacked)
	assert.Equal(t, "LoanIssued", received.EventType)
	assert.JSONEq(t, `{"TransactionID":"txn-1"}`, string(received.Body))
}

func Test_Consumer_Dispatch_NacksWithRequeue_WhenHandlerFails(t *testing.T) {
	// arrange
	consumer := &Consumer{}
	acknowledger := &fakeAcknowledger{}

	// act
	consumer.dispatch(context.Background(), amqp.Delivery{
		Acknowledger: acknowledger,
		Type:         "LoanClosed",
		Body:         []byte(`{}`),
	}, func(_ context.Context, _ Delivery) error {
		return errors.New("downstream unavailable")
	})

	// assert
	assert.False(t, acknowledger.acked)
	assert.True(t, acknowledger.nacked)
	assert.True(t, acknowledger.nackedRequeue)
}

func Test_BuildConsumer_Fails_WithNilConnection(t *testing.T) {
	// act
	_, err := BuildConsumer(nil, "lending-projections")

	// assert
	require.ErrorIs(t, err, ErrNilConnection)
}
