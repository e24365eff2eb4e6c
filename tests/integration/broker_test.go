package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/broker"
	"nimbus/internal/config"
	"nimbus/internal/logger"
	"nimbus/pkg/models"
)

func brokerConfig(url, queue string) config.BrokerConfig {
	return config.BrokerConfig{
		Type:              "amqp",
		GraceDelaySeconds: -1, // connect immediately under test
		AMQP: config.AMQPConfig{
			URL:         url,
			Exchange:    "user_events",
			Queue:       queue,
			RoutingKeys: []string{"user.created"},
		},
	}
}

func waitConnected(t *testing.T, state func() broker.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return state() == broker.StateConnected
	}, 30*time.Second, 100*time.Millisecond, "broker session never connected")
}

func TestPublishConsumeRoundTrip(t *testing.T) {
	url := SetupRabbitMQ(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []models.EventEnvelope
	)

	consumer := broker.NewAMQPConsumer(brokerConfig(url, "roundtrip_queue"), logger.NopLogger())
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	})
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Close()
	waitConnected(t, consumer.State)

	publisher := broker.NewAMQPPublisher(brokerConfig(url, ""), logger.NopLogger())
	require.NoError(t, publisher.Start(ctx))
	defer publisher.Close()
	waitConnected(t, publisher.State)

	sent := models.NewEvent("user_created", map[string]interface{}{
		"userId": "u1",
		"email":  "alice@example.com",
	})
	require.NoError(t, publisher.Publish(ctx, "user.created", sent))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 15*time.Second, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, sent.ID, received[0].ID)
	assert.Equal(t, "user_created", received[0].Type)
	assert.Equal(t, "alice@example.com", received[0].StringField("email"))
}

func TestFailedHandlerGetsRedelivery(t *testing.T) {
	url := SetupRabbitMQ(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		attempts int
	)

	consumer := broker.NewAMQPConsumer(brokerConfig(url, "redelivery_queue"), logger.NopLogger())
	consumer.Handle("user_created", func(ctx context.Context, event models.EventEnvelope) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient failure")
		}
		return nil
	})
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Close()
	waitConnected(t, consumer.State)

	publisher := broker.NewAMQPPublisher(brokerConfig(url, ""), logger.NopLogger())
	require.NoError(t, publisher.Start(ctx))
	defer publisher.Close()
	waitConnected(t, publisher.State)

	event := models.NewEvent("user_created", map[string]interface{}{"userId": "u1"})
	require.NoError(t, publisher.Publish(ctx, "user.created", event))

	// The nacked delivery is requeued and processed on the second attempt.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 15*time.Second, 100*time.Millisecond)
}

func TestPublishBeforeConnectFailsFast(t *testing.T) {
	url := SetupRabbitMQ(t)

	cfg := brokerConfig(url, "")
	cfg.GraceDelaySeconds = 60 // still in the grace window when we publish

	publisher := broker.NewAMQPPublisher(cfg, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, publisher.Start(ctx))
	defer publisher.Close()

	err := publisher.Publish(ctx, "user.created", models.NewEvent("user_created", nil))
	assert.Error(t, err)
}
