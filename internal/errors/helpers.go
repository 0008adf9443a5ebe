package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Routing error creators

// NewTargetNotFoundError reports that none of the recipient identifiers resolved.
func NewTargetNotFoundError(to, cc []string) *AppError {
	return New(ErrCodeTargetNotFound, "communication target not found").
		WithContext("to", strings.Join(to, ",")).
		WithContext("cc", strings.Join(cc, ",")).
		WithUserMessage("No recipient matched this message")
}

// NewInvalidFallbackProgramError reports an expired program whose fallback cannot serve.
func NewInvalidFallbackProgramError(programID, fallbackID string) *AppError {
	return New(ErrCodeInvalidFallbackProgram, "fallback program is not valid").
		WithContext("program_id", programID).
		WithContext("fallback_program_id", fallbackID)
}

// NewSenderDomainRejectedError guards against mail loops from the tenant's own domain.
func NewSenderDomainRejectedError(from, domain string) *AppError {
	return New(ErrCodeSenderDomainRejected, "sender belongs to the tenant mail domain").
		WithContext("from", from).
		WithContext("domain", domain)
}

// NewDuplicateMessageError marks a redelivery inside the duplicate window.
func NewDuplicateMessageError(messageID string) *AppError {
	return New(ErrCodeDuplicateMessage, "message already handled").
		WithContext("message_id", messageID)
}

// NewTransientStorageError wraps a storage failure the caller's queue may retry.
func NewTransientStorageError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransientStorage, fmt.Sprintf("storage %s failed", operation)).
		WithContext("operation", operation)
}

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewOutboundError classifies a failed provider call by status code.
func NewOutboundError(channel string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeOutbound, fmt.Sprintf("outbound %s send failed", channel)).
		WithContext("channel", channel).
		WithContext("status_code", statusCode)
	appErr.Retryable = statusCode == 0 || statusCode >= 500 || statusCode == 429 || statusCode == 408
	return appErr
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// IsFatal reports errors that must never be retried by the queue.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeTargetNotFound, ErrCodeInvalidFallbackProgram, ErrCodeSenderDomainRejected:
		return true
	}
	return false
}

// HTTP helpers

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeTargetNotFound, ErrCodeInvalidFallbackProgram, ErrCodeSenderDomainRejected:
		return http.StatusUnprocessableEntity
	case ErrCodeDuplicateMessage:
		return http.StatusOK
	case ErrCodeRotationConflict:
		return http.StatusConflict
	case ErrCodeOutbound, ErrCodeEventsBus:
		if IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case ErrCodeTransientStorage, ErrCodeDatabaseQuery, ErrCodeDatabaseMigration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the JSON body written for failed requests
type HTTPErrorResponse struct {
	Error struct {
		Code      ErrorCode   `json:"code"`
		Message   string      `json:"message"`
		Retryable bool        `json:"retryable"`
		Context   interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{RequestID: requestID}
	response.Error.Code = GetCode(err)
	response.Error.Message = GetUserMessage(err)
	response.Error.Retryable = IsRetryable(err)

	if appErr, ok := As(err); ok {
		if appErr.UserMessage == "" {
			response.Error.Message = appErr.Message
		}
		publicContext := make(map[string]interface{})
		for k, v := range appErr.Context {
			// addresses stay in logs only
			if k == "from" || k == "to" || k == "cc" || k == "secret" {
				continue
			}
			publicContext[k] = v
		}
		if len(publicContext) > 0 {
			response.Error.Context = publicContext
		}
	}
	return response
}
