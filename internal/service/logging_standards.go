package service

// Logging Standards for commrouter
//
// This file defines standard field names, log levels, and patterns
// to ensure consistent logging across the application.

// Standard Field Names
// Use these exact field names for consistency across all logging calls
const (
	// Core identifiers
	LogFieldMessageID       = "message_id"
	LogFieldCommunicationID = "communication_id"
	LogFieldThreadID        = "thread_id"
	LogFieldPartyID         = "party_id"
	LogFieldPersonID        = "person_id"
	LogFieldTeamID          = "team_id"
	LogFieldUserID          = "user_id"
	LogFieldProgramID       = "program_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"

	// Routing fields
	LogFieldChannel      = "channel"
	LogFieldFrom         = "from"
	LogFieldTo           = "to"
	LogFieldCc           = "cc"
	LogFieldOutcome      = "outcome"
	LogFieldTargetType   = "target_type"
	LogFieldTargetID     = "target_id"
	LogFieldReason       = "reason"
	LogFieldReceiverType = "receiver_type"
	LogFieldDialState    = "dial_state"
	LogFieldEventType    = "event_type"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"

	// Network and external services
	LogFieldMethod     = "method"
	LogFieldURL        = "url"
	LogFieldRoute      = "route"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"
	LogFieldSize       = "size_bytes"

	// Error and debugging
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: Detailed information for diagnosing problems. Only use in development or verbose mode.
//   - Individual resolver decisions
//   - Rotation pointer moves
//   - Raw request data (masked)
//
// INFO: General information about application flow and key events.
//   - Application startup/shutdown
//   - Inbound messages routed, forwarded or ignored
//   - Party owners assigned
//   - Configuration loaded
//
// WARN: Something unexpected happened, but the application can continue.
//   - Transient storage errors handed back for redelivery
//   - Fallback behavior used (dispatcher, voicemail)
//   - Events that could not be published
//
// ERROR: Error events that might still allow the application to continue.
//   - Fatal routing failures (no target, invalid fallback program)
//   - Outbound provider errors
//   - Authentication failures
//
// FATAL: Very severe error events that will presumably lead the application to abort.
//   - Configuration required for startup is missing
//   - Database cannot be opened or migrated

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "Completed [operation]" or "[Operation] completed successfully"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [operation]: [reason]"
// Configuration: "Loaded [config type] configuration" / "Using default [setting]"

// Example Usage:
//
// logger.WithFields(logrus.Fields{
//     LogFieldMessageID: SanitizeMessageID(messageID),
//     LogFieldChannel:   "EMAIL",
//     LogFieldOutcome:   "ROUTED",
// }).Info("Inbound message routed")
//
// logger.WithFields(logrus.Fields{
//     LogFieldTeamID:       team.ID,
//     LogFieldReceiverType: receivers.Type,
//     LogFieldDuration:     duration.Milliseconds(),
// }).Debug("Call receivers selected")
