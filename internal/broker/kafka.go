package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"nimbus/internal/config"
	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/logging"
	"nimbus/pkg/metrics"
	"nimbus/pkg/models"
	"nimbus/pkg/retry"
)

// KafkaPublisher is the alternative transport: one topic stands in for the
// exchange and the routing key travels as the message key. The writer is
// connectionless, so the session state machine does not apply; state is
// reported as connected once started.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.DefaultKafkaBatchTimeout,
		WriteTimeout: constants.DefaultKafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaPublisher{writer: w, logger: log}
}

func (p *KafkaPublisher) Start(ctx context.Context) error {
	return nil
}

func (p *KafkaPublisher) State() State {
	return StateConnected
}

func (p *KafkaPublisher) Publish(ctx context.Context, routingKey string, event models.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to marshal event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(routingKey),
		Value: body,
		Time:  event.EmittedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(event.Type, "failed").Inc()
		return pkgerrors.ErrChannelUnavailable.WithCause(err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(event.Type, "published").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg      config.KafkaConfig
	handlers map[string]HandlerFunc
	guard    Guard
	reader   *kafka.Reader
	logger   logger.Logger

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:      cfg,
		handlers: make(map[string]HandlerFunc),
		logger:   log,
		state:    StateDisconnected,
	}
}

func (c *KafkaConsumer) Handle(eventType string, handler HandlerFunc) {
	c.handlers[eventType] = handler
}

func (c *KafkaConsumer) SetGuard(guard Guard) {
	c.guard = guard
}

func (c *KafkaConsumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *KafkaConsumer) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    c.cfg.Topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *KafkaConsumer) run(ctx context.Context) {
	defer c.wg.Done()
	c.setState(StateConnected)
	defer c.setState(StateDisconnected)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorwCtx(ctx, "Error fetching kafka message", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var event models.EventEnvelope
		if err := json.Unmarshal(m.Value, &event); err != nil {
			c.logger.ErrorwCtx(ctx, "Dropping undecodable event", "error", err)
			metrics.EventsConsumedTotal.WithLabelValues("unknown", "undecodable").Inc()
			_ = c.reader.CommitMessages(ctx, m)
			continue
		}

		msgCtx := logging.WithEventID(ctx, event.ID)

		handler, ok := c.handlers[event.Type]
		if !ok {
			metrics.EventsConsumedTotal.WithLabelValues(event.Type, "unhandled").Inc()
			_ = c.reader.CommitMessages(ctx, m)
			continue
		}

		if c.guard != nil && event.ID != "" {
			claimed, guardErr := c.guard.Claim(msgCtx, event.ID)
			if guardErr != nil {
				c.logger.WarnwCtx(msgCtx, "Idempotency guard unavailable", "error", guardErr)
			} else if !claimed {
				metrics.EventsConsumedTotal.WithLabelValues(event.Type, "duplicate").Inc()
				_ = c.reader.CommitMessages(ctx, m)
				continue
			}
		}

		// Kafka has no per-message nack; retry in-process before deciding
		// whether to commit. An uncommitted offset is redelivered after a
		// rebalance or restart.
		err = retry.Retry(msgCtx, retry.DefaultPolicy(), func() error {
			return handler(msgCtx, event)
		})
		if err != nil {
			c.logger.ErrorwCtx(msgCtx, "Event handler failed, leaving offset uncommitted",
				"event_type", event.Type,
				"error", err,
			)
			metrics.EventsConsumedTotal.WithLabelValues(event.Type, "failed").Inc()
			if c.guard != nil && event.ID != "" {
				_ = c.guard.Release(msgCtx, event.ID)
			}
			continue
		}

		metrics.EventsConsumedTotal.WithLabelValues(event.Type, "processed").Inc()
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.ErrorwCtx(msgCtx, "Failed to commit message", "error", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}
