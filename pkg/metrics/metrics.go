package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{0.1, 5, 15, 50, 100, 500},
		},
		[]string{"service", "method", "route", "code"},
	)

	GatewayForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_forwards_total",
			Help: "Total requests forwarded by the gateway, by target service and outcome",
		},
		[]string{"target_service", "status"},
	)

	UserRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_registrations_total",
			Help: "Total number of user registrations",
		},
		[]string{"status"},
	)

	ActiveUsersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_users_count",
			Help: "Current number of active users",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total domain events published, by type and outcome",
		},
		[]string{"event_type", "status"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total domain events consumed, by type and outcome",
		},
		[]string{"event_type", "status"},
	)

	BrokerReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_reconnects_total",
			Help: "Total broker reconnect attempts",
		},
	)

	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Requests seen by the rate limiter, by outcome",
		},
		[]string{"status"},
	)
)
