package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"nimbus/internal/config"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/logging"
	"nimbus/pkg/metrics"
	"nimbus/pkg/models"
)

type AMQPPublisher struct {
	session *session
	logger  logger.Logger
}

func NewAMQPPublisher(cfg config.BrokerConfig, log logger.Logger) *AMQPPublisher {
	p := &AMQPPublisher{logger: log}
	p.session = newSession(cfg, "publisher", nil, log)
	return p
}

func (p *AMQPPublisher) Start(ctx context.Context) error {
	return p.session.Start(ctx)
}

func (p *AMQPPublisher) State() State {
	return p.session.State()
}

func (p *AMQPPublisher) Close() error {
	return p.session.Close()
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event models.EventEnvelope) error {
	ch, err := p.session.channel()
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(event.Type, "channel_unavailable").Inc()
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to marshal event")
	}

	err = ch.PublishWithContext(ctx, p.session.cfg.AMQP.Exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.EmittedAt,
		Body:         body,
	})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(event.Type, "failed").Inc()
		return pkgerrors.ErrChannelUnavailable.WithCause(err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(event.Type, "published").Inc()
	p.logger.DebugwCtx(ctx, "Event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"routing_key", routingKey,
	)
	return nil
}

type AMQPConsumer struct {
	session  *session
	handlers map[string]HandlerFunc
	guard    Guard
	logger   logger.Logger
	wg       sync.WaitGroup
}

func NewAMQPConsumer(cfg config.BrokerConfig, log logger.Logger) *AMQPConsumer {
	c := &AMQPConsumer{
		handlers: make(map[string]HandlerFunc),
		logger:   log,
	}
	c.session = newSession(cfg, "consumer", c.setup, log)
	return c
}

func (c *AMQPConsumer) Handle(eventType string, handler HandlerFunc) {
	c.handlers[eventType] = handler
}

func (c *AMQPConsumer) SetGuard(guard Guard) {
	c.guard = guard
}

func (c *AMQPConsumer) Start(ctx context.Context) error {
	return c.session.Start(ctx)
}

func (c *AMQPConsumer) State() State {
	return c.session.State()
}

func (c *AMQPConsumer) Close() error {
	err := c.session.Close()
	c.wg.Wait()
	return err
}

// setup runs on every (re)connect: the durable queue and its bindings must be
// redeclared because the broker may have restarted since the last session.
func (c *AMQPConsumer) setup(ctx context.Context, ch *amqp091.Channel) error {
	cfg := c.session.cfg.AMQP

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	routingKeys := cfg.RoutingKeys
	if len(routingKeys) == 0 {
		routingKeys = []string{"#"}
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue.Name, key, cfg.Exchange, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := ch.Consume(queue.Name, cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go c.dispatchLoop(ctx, deliveries)
	return nil
}

func (c *AMQPConsumer) dispatchLoop(ctx context.Context, deliveries <-chan amqp091.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.processDelivery(ctx, d)
		}
	}
}

func (c *AMQPConsumer) processDelivery(ctx context.Context, d amqp091.Delivery) {
	var event models.EventEnvelope
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.ErrorwCtx(ctx, "Dropping undecodable event",
			"error", err,
			"routing_key", d.RoutingKey,
		)
		metrics.EventsConsumedTotal.WithLabelValues("unknown", "undecodable").Inc()
		_ = d.Nack(false, false)
		return
	}

	ctx = logging.WithEventID(ctx, event.ID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		// No handler bound for this type; acknowledge so the queue does
		// not wedge on events meant for nobody.
		c.logger.DebugwCtx(ctx, "No handler for event type", "event_type", event.Type)
		metrics.EventsConsumedTotal.WithLabelValues(event.Type, "unhandled").Inc()
		_ = d.Ack(false)
		return
	}

	if c.guard != nil && event.ID != "" {
		claimed, err := c.guard.Claim(ctx, event.ID)
		if err != nil {
			// Guard failure falls back to plain at-least-once.
			c.logger.WarnwCtx(ctx, "Idempotency guard unavailable", "error", err)
		} else if !claimed {
			c.logger.InfowCtx(ctx, "Skipping already-processed event", "event_type", event.Type)
			metrics.EventsConsumedTotal.WithLabelValues(event.Type, "duplicate").Inc()
			_ = d.Ack(false)
			return
		}
	}

	if err := c.invoke(ctx, handler, event); err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(event.Type, "failed").Inc()

		var fatal pkgerrors.FatalError
		if errors.As(err, &fatal) && fatal.IsFatal() {
			// With prefetch 1 a requeued delivery comes straight back, so an
			// event that can never be handled would wedge the queue.
			c.logger.ErrorwCtx(ctx, "Dropping event after non-retryable handler error",
				"event_type", event.Type,
				"error", err,
			)
			_ = d.Nack(false, false)
			return
		}

		c.logger.ErrorwCtx(ctx, "Event handler failed, leaving event for redelivery",
			"event_type", event.Type,
			"error", err,
		)
		if c.guard != nil && event.ID != "" {
			_ = c.guard.Release(ctx, event.ID)
		}
		_ = d.Nack(false, true)
		return
	}

	metrics.EventsConsumedTotal.WithLabelValues(event.Type, "processed").Inc()
	_ = d.Ack(false)
}

func (c *AMQPConsumer) invoke(ctx context.Context, handler HandlerFunc, event models.EventEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanic(r)
		}
	}()
	return handler(ctx, event)
}
