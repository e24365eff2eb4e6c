package constants

import "time"

const (
	// DefaultForwardTimeout bounds a gateway round trip to an upstream.
	DefaultForwardTimeout = 10 * time.Second

	// DefaultBrokerGraceDelay is how long a freshly started process waits
	// before the first broker connection attempt.
	DefaultBrokerGraceDelay = 10 * time.Second

	DefaultBrokerDialTimeout = 30 * time.Second
)

const (
	UserEventsExchange = "user_events"
	EmailServiceQueue  = "email_service_queue"

	EventTypeUserCreated  = "user_created"
	RoutingKeyUserCreated = "user.created"
)

const (
	ServiceNameRegistry = "service-registry"
	ServiceNameGateway  = "api-gateway"
	ServiceNameUsers    = "user-service"
	ServiceNameEmail    = "email-service"
)

const (
	HeaderServiceToken = "x-service-token"
)

const (
	WelcomeEmailSubject = "Welcome to Our App!"
)

const (
	EmailStatusSent = "sent"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
	DefaultKafkaWriteTimeout = 10 * time.Second
)
