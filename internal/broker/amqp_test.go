package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/config"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/models"
)

// fakeAcknowledger records the terminal decision taken for a delivery.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

type fakeGuard struct {
	claimed  bool
	claimErr error
	claims   []string
	releases []string
}

func (g *fakeGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	g.claims = append(g.claims, eventID)
	return g.claimed, g.claimErr
}

func (g *fakeGuard) Release(ctx context.Context, eventID string) error {
	g.releases = append(g.releases, eventID)
	return nil
}

func newTestConsumer(t *testing.T) *AMQPConsumer {
	t.Helper()
	return NewAMQPConsumer(config.BrokerConfig{
		Type: "amqp",
		AMQP: config.AMQPConfig{
			Exchange: "user_events",
			Queue:    "email_service_queue",
		},
	}, logger.NopLogger())
}

func deliveryFor(t *testing.T, ack *fakeAcknowledger, event models.EventEnvelope) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp091.Delivery{
		Acknowledger: ack,
		Body:         body,
		RoutingKey:   "user.created",
	}
}

func TestProcessDeliveryAcksOnSuccess(t *testing.T) {
	consumer := newTestConsumer(t)

	var handled models.EventEnvelope
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		handled = event
		return nil
	})

	ack := &fakeAcknowledger{}
	event := models.NewEvent("user_created", map[string]interface{}{"userId": "u1"})
	consumer.processDelivery(context.Background(), deliveryFor(t, ack, event))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, event.ID, handled.ID)
	assert.Equal(t, "u1", handled.StringField("userId"))
}

func TestProcessDeliveryRequeuesOnHandlerError(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		return errors.New("downstream unavailable")
	})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), deliveryFor(t, ack,
		models.NewEvent("user_created", nil)))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestProcessDeliveryDropsFatalHandlerError(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		return pkgerrors.ErrValidation.AsFatal().
			WithDetail("message", "event is missing the email field")
	})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), deliveryFor(t, ack,
		models.NewEvent("user_created", nil)))

	// A payload that can never be handled must not be requeued: with
	// prefetch 1 it would come straight back and block the queue.
	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessDeliveryDropsUndecodable(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		t.Fatal("handler must not run for undecodable payloads")
		return nil
	})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), amqp091.Delivery{
		Acknowledger: ack,
		Body:         []byte("{not valid json"),
	})

	// Dropped, not requeued: the payload will never decode on redelivery.
	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessDeliveryAcksUnhandledType(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		t.Fatal("handler must not run for other event types")
		return nil
	})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), deliveryFor(t, ack,
		models.NewEvent("user_deleted", nil)))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestProcessDeliverySkipsDuplicates(t *testing.T) {
	consumer := newTestConsumer(t)
	invoked := false
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		invoked = true
		return nil
	})

	guard := &fakeGuard{claimed: false}
	consumer.SetGuard(guard)

	ack := &fakeAcknowledger{}
	event := models.NewEvent("user_created", nil)
	consumer.processDelivery(context.Background(), deliveryFor(t, ack, event))

	assert.False(t, invoked)
	assert.True(t, ack.acked)
	assert.Equal(t, []string{event.ID}, guard.claims)
}

func TestProcessDeliveryGuardErrorFallsThrough(t *testing.T) {
	consumer := newTestConsumer(t)
	invoked := false
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		invoked = true
		return nil
	})

	// An unreachable guard degrades to plain at-least-once delivery.
	consumer.SetGuard(&fakeGuard{claimErr: errors.New("redis down")})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), deliveryFor(t, ack,
		models.NewEvent("user_created", nil)))

	assert.True(t, invoked)
	assert.True(t, ack.acked)
}

func TestProcessDeliveryReleasesClaimOnFailure(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		return errors.New("boom")
	})

	guard := &fakeGuard{claimed: true}
	consumer.SetGuard(guard)

	ack := &fakeAcknowledger{}
	event := models.NewEvent("user_created", nil)
	consumer.processDelivery(context.Background(), deliveryFor(t, ack, event))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.Equal(t, []string{event.ID}, guard.releases)
}

func TestPublishFailsFastWhenDisconnected(t *testing.T) {
	publisher := NewAMQPPublisher(config.BrokerConfig{
		Type: "amqp",
		AMQP: config.AMQPConfig{Exchange: "user_events"},
	}, logger.NopLogger())

	err := publisher.Publish(context.Background(), "user.created",
		models.NewEvent("user_created", nil))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsChannelUnavailable(err))
}

func TestProcessDeliveryRecoversHandlerPanic(t *testing.T) {
	consumer := newTestConsumer(t)
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		panic("handler bug")
	})

	ack := &fakeAcknowledger{}
	consumer.processDelivery(context.Background(), deliveryFor(t, ack,
		models.NewEvent("user_created", nil)))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}
