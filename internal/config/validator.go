package config

import (
	"fmt"
	"strings"
)

func ValidateStatic(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("server.read_timeout_seconds must not be negative")
	}
	if cfg.Server.WriteTimeoutSeconds < 0 {
		return fmt.Errorf("server.write_timeout_seconds must not be negative")
	}

	if err := validateBroker(&cfg.Broker); err != nil {
		return err
	}

	if err := validateRoutes(cfg.Gateway.Routes); err != nil {
		return err
	}

	if cfg.Gateway.RateLimit.Enabled {
		if cfg.Gateway.RateLimit.RPS <= 0 {
			return fmt.Errorf("gateway.rate_limit.rps must be positive when rate limiting is enabled")
		}
		if cfg.Gateway.RateLimit.Burst <= 0 {
			return fmt.Errorf("gateway.rate_limit.burst must be positive when rate limiting is enabled")
		}
	}

	return nil
}

func validateBroker(cfg *BrokerConfig) error {
	switch cfg.Type {
	case "":
		// broker is optional; services without an event channel leave it unset
		return nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return fmt.Errorf("broker.amqp.url is required for broker type amqp")
		}
		if cfg.AMQP.Exchange == "" {
			return fmt.Errorf("broker.amqp.exchange is required for broker type amqp")
		}
		if cfg.AMQP.PrefetchCount < 0 {
			return fmt.Errorf("broker.amqp.prefetch_count must not be negative")
		}
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("broker.kafka.brokers is required for broker type kafka")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("broker.kafka.topic is required for broker type kafka")
		}
	default:
		return fmt.Errorf("unknown broker type: %s", cfg.Type)
	}

	if cfg.Idempotency.Enabled && cfg.Idempotency.TTLSeconds <= 0 {
		return fmt.Errorf("broker.idempotency.ttl_seconds must be positive when idempotency is enabled")
	}

	return nil
}

func validateRoutes(routes []RouteConfig) error {
	for i, route := range routes {
		if route.Prefix == "" {
			return fmt.Errorf("gateway.routes[%d].prefix is required", i)
		}
		if !strings.HasPrefix(route.Prefix, "/") {
			return fmt.Errorf("gateway.routes[%d].prefix must start with '/', got %q", i, route.Prefix)
		}
		if route.Service == "" {
			return fmt.Errorf("gateway.routes[%d].service is required", i)
		}
		if route.TimeoutSeconds < 0 {
			return fmt.Errorf("gateway.routes[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}
