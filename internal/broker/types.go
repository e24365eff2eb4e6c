package broker

import (
	"context"

	"nimbus/pkg/models"
)

// State is the connection lifecycle of a broker session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

type Publisher interface {
	// Publish sends one event under the given routing key. It fails fast
	// with CHANNEL_UNAVAILABLE when the session is not connected; the
	// caller decides whether to drop or propagate.
	Publish(ctx context.Context, routingKey string, event models.EventEnvelope) error
	Start(ctx context.Context) error
	State() State
	Close() error
}

type Consumer interface {
	// Handle registers a handler for an event type. All registrations must
	// happen before Start.
	Handle(eventType string, handler HandlerFunc)
	Start(ctx context.Context) error
	State() State
	SetGuard(guard Guard)
	Close() error
}

type HandlerFunc func(ctx context.Context, event models.EventEnvelope) error

// Guard is the optional consumer-side idempotency check. Claim returns false
// when the event id was already processed; Release undoes a claim after a
// handler failure so the redelivery gets another chance.
type Guard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}
