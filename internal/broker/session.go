package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"

	"nimbus/internal/config"
	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/metrics"
	"nimbus/pkg/retry"
)

var errSessionClosed = errors.New("broker session closed")

// session owns one AMQP connection and channel and supervises its lifecycle:
// Disconnected -> Connecting -> Connected, back to Disconnected on any
// connection error, then reconnect with exponential backoff. Publish and
// consume code never manages reconnection itself.
type session struct {
	cfg    config.BrokerConfig
	role   string
	setup  func(ctx context.Context, ch *amqp091.Channel) error
	logger logger.Logger

	mu    sync.Mutex
	conn  *amqp091.Connection
	ch    *amqp091.Channel
	state State

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(cfg config.BrokerConfig, role string, setup func(ctx context.Context, ch *amqp091.Channel) error, log logger.Logger) *session {
	return &session{
		cfg:    cfg,
		role:   role,
		setup:  setup,
		logger: log,
		state:  StateDisconnected,
		closed: make(chan struct{}),
	}
}

func (s *session) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.supervise(ctx)
	return nil
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// channel hands out the live channel, or fails fast when the session is not
// connected.
func (s *session) channel() (*amqp091.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.ch == nil {
		return nil, pkgerrors.ErrChannelUnavailable.WithDetail("role", s.role)
	}
	return s.ch, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.teardown()
	s.wg.Wait()
	return nil
}

func (s *session) supervise(ctx context.Context) {
	defer s.wg.Done()

	grace := s.graceDelay()
	if grace > 0 {
		s.logger.Infow("Waiting before first broker connection attempt",
			"role", s.role,
			"delay", grace,
		)
		select {
		case <-time.After(grace):
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		}
	}

	for {
		s.setState(StateConnecting)

		notify, err := s.connectWithBackoff(ctx)
		if err != nil {
			s.setState(StateDisconnected)
			if !errors.Is(err, context.Canceled) && !errors.Is(err, errSessionClosed) {
				s.logger.ErrorwCtx(ctx, "Broker supervisor giving up",
					"role", s.role,
					"error", err,
				)
			}
			return
		}

		s.setState(StateConnected)
		s.logger.InfowCtx(ctx, "Broker session established",
			"role", s.role,
			"exchange", s.cfg.AMQP.Exchange,
		)

		select {
		case <-ctx.Done():
			s.teardown()
			s.setState(StateDisconnected)
			return
		case <-s.closed:
			s.teardown()
			s.setState(StateDisconnected)
			return
		case closeErr := <-notify:
			s.teardown()
			s.setState(StateDisconnected)
			metrics.BrokerReconnectsTotal.Inc()
			s.logger.ErrorwCtx(ctx, "Broker connection lost, reconnecting",
				"role", s.role,
				"error", closeErr,
			)
		}
	}
}

func (s *session) connectWithBackoff(ctx context.Context) (chan *amqp091.Error, error) {
	policy := s.reconnectPolicy()

	b := backoff.WithContext(
		retry.ExponentialBackoff(policy.InitialInterval, policy.MaxInterval, policy.Multiplier),
		ctx,
	)

	var notify chan *amqp091.Error
	attempt := 0
	operation := func() error {
		select {
		case <-s.closed:
			return backoff.Permanent(errSessionClosed)
		default:
		}

		attempt++
		n, err := s.connect(ctx)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Broker connection attempt failed",
				"role", s.role,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		notify = n
		return nil
	}

	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return notify, nil
}

func (s *session) connect(ctx context.Context) (chan *amqp091.Error, error) {
	conn, err := amqp091.DialConfig(s.cfg.AMQP.URL, amqp091.Config{
		Dial: amqp091.DefaultDial(constants.DefaultBrokerDialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declarations run on every (re)connect: the broker may have restarted
	// independently of this process.
	if err := ch.ExchangeDeclare(s.cfg.AMQP.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", s.cfg.AMQP.Exchange, err)
	}

	if s.setup != nil {
		if err := s.setup(ctx, ch); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	notify := conn.NotifyClose(make(chan *amqp091.Error, 1))

	s.mu.Lock()
	s.conn = conn
	s.ch = ch
	s.mu.Unlock()

	return notify, nil
}

func (s *session) teardown() {
	s.mu.Lock()
	ch, conn := s.ch, s.conn
	s.ch, s.conn = nil, nil
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *session) graceDelay() time.Duration {
	if s.cfg.GraceDelaySeconds < 0 {
		return 0
	}
	if s.cfg.GraceDelaySeconds == 0 {
		return constants.DefaultBrokerGraceDelay
	}
	return time.Duration(s.cfg.GraceDelaySeconds) * time.Second
}

func (s *session) reconnectPolicy() retry.Policy {
	policy := retry.Policy{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
	if s.cfg.Reconnect.InitialInterval > 0 {
		policy.InitialInterval = s.cfg.Reconnect.InitialInterval
	}
	if s.cfg.Reconnect.MaxInterval > 0 {
		policy.MaxInterval = s.cfg.Reconnect.MaxInterval
	}
	if s.cfg.Reconnect.Multiplier > 0 {
		policy.Multiplier = s.cfg.Reconnect.Multiplier
	}
	return policy
}
