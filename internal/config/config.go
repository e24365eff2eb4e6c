package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig
	Registry RegistryConfig
	Gateway  GatewayConfig
	Broker   BrokerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

func (c ServerConfig) ReadTimeout() time.Duration {
	if c.ReadTimeoutSeconds <= 0 {
		return defaultReadTimeout
	}
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	if c.WriteTimeoutSeconds <= 0 {
		return defaultWriteTimeout
	}
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// RegistryConfig describes how a service talks to the discovery directory:
// where it lives, and under what name/address this process announces itself.
type RegistryConfig struct {
	URL          string      `mapstructure:"url"`
	ServiceName  string      `mapstructure:"service_name"`
	AdvertiseURL string      `mapstructure:"advertise_url"`
	Register     RetryConfig `mapstructure:"register"`
}

type GatewayConfig struct {
	Routes         []RouteConfig     `mapstructure:"routes"`
	StaticServices map[string]string `mapstructure:"static_services"`
	RateLimit      RateLimitConfig   `mapstructure:"rate_limit"`
}

// RouteConfig rules are matched in declaration order; the first prefix that
// matches wins, so more specific prefixes must be listed first.
type RouteConfig struct {
	Prefix         string `mapstructure:"prefix"`
	Service        string `mapstructure:"service"`
	Rewrite        string `mapstructure:"rewrite"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type BrokerConfig struct {
	Type              string            `mapstructure:"type"`
	GraceDelaySeconds int               `mapstructure:"grace_delay_seconds"`
	Reconnect         RetryConfig       `mapstructure:"reconnect"`
	AMQP              AMQPConfig        `mapstructure:"amqp"`
	Kafka             KafkaConfig       `mapstructure:"kafka"`
	Idempotency       IdempotencyConfig `mapstructure:"idempotency"`
}

type AMQPConfig struct {
	URL           string   `mapstructure:"url"`
	Exchange      string   `mapstructure:"exchange"`
	Queue         string   `mapstructure:"queue"`
	RoutingKeys   []string `mapstructure:"routing_keys"`
	ConsumerTag   string   `mapstructure:"consumer_tag"`
	PrefetchCount int      `mapstructure:"prefetch_count"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

// IdempotencyConfig gates the optional consumer-side duplicate guard.
// Disabled by default: delivery stays plain at-least-once.
type IdempotencyConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	Redis         RedisConfig    `mapstructure:"redis"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	ServiceSecretKey string `mapstructure:"service_secret_key"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
