package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig    `json:"server" yaml:"server"`
	Database DatabaseConfig  `json:"database" yaml:"database"`
	Tenant   TenantConfig    `json:"tenant" yaml:"tenant"`
	Routing  RoutingConfig   `json:"routing" yaml:"routing"`
	Dedup    DedupConfig     `json:"dedup" yaml:"dedup"`
	Events   EventsConfig    `json:"events" yaml:"events"`
	Outbound OutboundConfig  `json:"outbound" yaml:"outbound"`
	Retry    RetryConfig     `json:"retry" yaml:"retry"`
	Tracing  TracingConfig   `json:"tracing" yaml:"tracing"`
	Features map[string]bool `json:"features,omitempty" yaml:"features"`
	LogLevel string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig holds HTTP surface settings
type ServerConfig struct {
	Port               int    `json:"port" yaml:"port"`
	WebhookSecret      string `json:"webhook_secret" yaml:"webhook_secret"`
	WebhookMaxSkewSec  int    `json:"webhook_max_skew_sec" yaml:"webhook_max_skew_sec"`
	ReadTimeoutSec     int    `json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec    int    `json:"write_timeout_sec" yaml:"write_timeout_sec"`
	IdleTimeoutSec     int    `json:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path             string `json:"path" yaml:"path"`
	EncryptionSecret string `json:"encryption_secret" yaml:"encryption_secret"`
}

// TenantConfig describes the tenant's own addresses
type TenantConfig struct {
	MailDomain       string `json:"mail_domain" yaml:"mail_domain"`
	OutboundFrom     string `json:"outbound_from" yaml:"outbound_from"`
	OutboundFromName string `json:"outbound_from_name" yaml:"outbound_from_name"`
}

// RoutingConfig tunes the routing engine
type RoutingConfig struct {
	DuplicateWindowMin  int `json:"duplicate_window_min" yaml:"duplicate_window_min"`
	RotationCASAttempts int `json:"rotation_cas_attempts" yaml:"rotation_cas_attempts"`
}

// DedupBackend selects where delivered message ids are remembered
type DedupBackend string

const (
	DedupSQLite DedupBackend = "sqlite"
	DedupRedis  DedupBackend = "redis"
)

// DedupConfig holds duplicate-delivery detection settings
type DedupConfig struct {
	Backend       DedupBackend `json:"backend" yaml:"backend"`
	RedisAddr     string       `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string       `json:"redis_password" yaml:"redis_password"`
	RedisDB       int          `json:"redis_db" yaml:"redis_db"`
	KeyPrefix     string       `json:"key_prefix" yaml:"key_prefix"`
}

// EventsConfig holds the AMQP publisher settings; an empty URL disables publishing
type EventsConfig struct {
	AMQPURL  string `json:"amqp_url" yaml:"amqp_url"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

// OutboundConfig holds the provider used to forward messages externally
type OutboundConfig struct {
	ProviderURL            string `json:"provider_url" yaml:"provider_url"`
	AuthToken              string `json:"auth_token" yaml:"auth_token"`
	TimeoutSec             int    `json:"timeout_sec" yaml:"timeout_sec"`
	BreakerMaxFailures     int    `json:"breaker_max_failures" yaml:"breaker_max_failures"`
	BreakerResetTimeoutSec int    `json:"breaker_reset_timeout_sec" yaml:"breaker_reset_timeout_sec"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"maxBackoffMs" yaml:"max_backoff_ms"`
	MaxAttempts      int `json:"maxAttempts" yaml:"max_attempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	ServiceName    string  `json:"service_name" yaml:"service_name"`
	OTLPEndpoint   string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate" yaml:"sample_rate"`
	UseConsole     bool    `json:"use_console" yaml:"use_console"`
	Environment    string  `json:"environment" yaml:"environment"`
	ServiceVersion string  `json:"service_version" yaml:"service_version"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
