package constants

// Default server configuration values
const (
	DefaultServerPort            = 8082
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultMaxRequestBodyBytes   = 1 << 20
	DefaultWebhookMaxSkewSec     = 300
	DefaultRateLimitPerMinute    = 600
)

// Default routing values
const (
	DefaultDuplicateWindowMin  = 5
	DefaultRotationCASAttempts = 5
	MaxProgramFallbackHops     = 1
	DefaultMailDomain          = "mail.commrouter.local"
)

// Default retry and storage values
const (
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 5
	DefaultDatabaseRetryAttempts  = 3
	DefaultBackoffInitialMs       = 500
	DefaultBackoffMaxSec          = 5
	DefaultOutboundTimeoutSec     = 15
	DefaultBreakerMaxFailures     = 5
	DefaultBreakerResetTimeoutSec = 30
)

// Default event bus values
const (
	DefaultEventsExchange = "commrouter.events"
	DefaultRedisKeyPrefix = "commrouter:dedup:"
)

// Inbound envelope limits
const (
	MaxRecipients       = 100
	MaxAddressLength    = 320
	MaxSubjectLength    = 998
	MaxTextBytes        = 512 * 1024
	MaxHeaderCount      = 200
	MaxLeadFieldCount   = 100
	MaxIdentifierLength = 128
)

// Privacy settings
const (
	DefaultMessageIDLength = 8
	MaxMessageIDLength     = 998
)

// Encryption at rest
const (
	MinEncryptionSecretLength = 32
	EncryptionSalt            = "commrouter-field-encryption-v1"
	EncryptionLookupSalt      = "commrouter-lookup-v1"
)
