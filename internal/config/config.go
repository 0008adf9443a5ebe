package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"commrouter/internal/constants"
	"commrouter/internal/models"
	"commrouter/internal/security"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
	ErrMissingMailDomain = models.ConfigError{Message: "missing tenant mail domain"}
)

const envPrefix = "COMMROUTER_"

// LoadConfig reads a JSON or YAML config file, fills defaults and applies
// COMMROUTER_* environment overrides.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	if err := security.ValidateFileExtension(path, ".json", ".yaml", ".yml"); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, &config)
	default:
		err = json.Unmarshal(file, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadDotEnv loads variables from the first .env file found; a missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		return nil
	}
	return nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Tenant.MailDomain == "" {
		return ErrMissingMailDomain
	}
	c.Tenant.MailDomain = strings.ToLower(c.Tenant.MailDomain)
	if c.Tenant.OutboundFrom == "" {
		c.Tenant.OutboundFrom = "noreply@" + c.Tenant.MailDomain
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.WebhookMaxSkewSec <= 0 {
		c.Server.WebhookMaxSkewSec = constants.DefaultWebhookMaxSkewSec
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = constants.DefaultRateLimitPerMinute
	}

	if c.Routing.DuplicateWindowMin <= 0 {
		c.Routing.DuplicateWindowMin = constants.DefaultDuplicateWindowMin
	}
	if c.Routing.RotationCASAttempts <= 0 {
		c.Routing.RotationCASAttempts = constants.DefaultRotationCASAttempts
	}

	switch c.Dedup.Backend {
	case "":
		c.Dedup.Backend = models.DedupSQLite
	case models.DedupSQLite:
	case models.DedupRedis:
		if c.Dedup.RedisAddr == "" {
			return models.ConfigError{Message: "dedup.redis_addr is required for the redis backend"}
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unsupported dedup backend %q", c.Dedup.Backend)}
	}
	if c.Dedup.KeyPrefix == "" {
		c.Dedup.KeyPrefix = constants.DefaultRedisKeyPrefix
	}

	if c.Events.AMQPURL != "" && c.Events.Exchange == "" {
		c.Events.Exchange = constants.DefaultEventsExchange
	}

	if c.Outbound.TimeoutSec <= 0 {
		c.Outbound.TimeoutSec = constants.DefaultOutboundTimeoutSec
	}
	if c.Outbound.BreakerMaxFailures <= 0 {
		c.Outbound.BreakerMaxFailures = constants.DefaultBreakerMaxFailures
	}
	if c.Outbound.BreakerResetTimeoutSec <= 0 {
		c.Outbound.BreakerResetTimeoutSec = constants.DefaultBreakerResetTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	strs := map[string]*string{
		"DB_PATH":           &c.Database.Path,
		"ENCRYPTION_SECRET": &c.Database.EncryptionSecret,
		"WEBHOOK_SECRET":    &c.Server.WebhookSecret,
		"MAIL_DOMAIN":       &c.Tenant.MailDomain,
		"OUTBOUND_FROM":     &c.Tenant.OutboundFrom,
		"OUTBOUND_URL":      &c.Outbound.ProviderURL,
		"OUTBOUND_TOKEN":    &c.Outbound.AuthToken,
		"REDIS_ADDR":        &c.Dedup.RedisAddr,
		"REDIS_PASSWORD":    &c.Dedup.RedisPassword,
		"AMQP_URL":          &c.Events.AMQPURL,
		"EVENTS_EXCHANGE":   &c.Events.Exchange,
		"OTLP_ENDPOINT":     &c.Tracing.OTLPEndpoint,
		"LOG_LEVEL":         &c.LogLevel,
	}
	for key, target := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*target = v
		}
	}

	if v := os.Getenv(envPrefix + "DEDUP_BACKEND"); v != "" {
		c.Dedup.Backend = models.DedupBackend(strings.ToLower(v))
	}

	ints := map[string]*int{
		"PORT":                  &c.Server.Port,
		"DUPLICATE_WINDOW_MIN":  &c.Routing.DuplicateWindowMin,
		"ROTATION_CAS_ATTEMPTS": &c.Routing.RotationCASAttempts,
	}
	for key, target := range ints {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("%s%s must be an integer: %v", envPrefix, key, err)}
		}
		*target = n
	}
	return nil
}

// validateSecurity enforces secrets in production and warns in development
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv(envPrefix+"ENV") == "production"

	if c.Database.EncryptionSecret != "" && len(c.Database.EncryptionSecret) < constants.MinEncryptionSecretLength {
		return models.ConfigError{Message: fmt.Sprintf("encryption secret must be at least %d characters long", constants.MinEncryptionSecretLength)}
	}

	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set COMMROUTER_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.Database.EncryptionSecret == "" {
			return models.ConfigError{Message: "encryption secret is required in production (set COMMROUTER_ENCRYPTION_SECRET environment variable)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set COMMROUTER_WEBHOOK_SECRET environment variable for security.\n")
	}
	return nil
}
