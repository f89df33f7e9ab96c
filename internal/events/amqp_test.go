package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherPublishesJSONEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	pub := newAMQPPublisherWithChannel(ch, "stable.bookings")

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	env := NewEnvelope(RoutingBookingCreated, at, BookingCreatedV1{
		BookingID:       7,
		SlotID:          3,
		StudentID:       9,
		PaymentSource:   "single",
		AmountPaidCents: 4500,
		StartTime:       at,
	})
	require.NoError(t, pub.Publish(context.Background(), RoutingBookingCreated, env))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, "stable.bookings", ch.sent[0].exchange)
	assert.Equal(t, RoutingBookingCreated, ch.sent[0].key)
	assert.Equal(t, "application/json", ch.sent[0].msg.ContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &decoded))
	assert.Equal(t, RoutingBookingCreated, decoded["type"])
	assert.NotEmpty(t, decoded["event_id"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, float64(7), data["booking_id"])
	assert.Equal(t, float64(4500), data["amount_paid_cents"])

	require.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherWrapsChannelError(t *testing.T) {
	boom := errors.New("channel closed")
	pub := newAMQPPublisherWithChannel(&fakeChannel{err: boom}, "stable.bookings")

	err := pub.Publish(context.Background(), RoutingBookingCancelled, BookingCancelledV1{BookingID: 1})
	require.ErrorIs(t, err, boom)
}

func TestNopPublisher(t *testing.T) {
	var pub Publisher = NopPublisher{}
	require.NoError(t, pub.Publish(context.Background(), RoutingBookingCreated, nil))
	require.NoError(t, pub.Close())
}
