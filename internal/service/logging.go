package service

import (
	"context"
	"fmt"
	"strings"

	"commrouter/internal/constants"
	"commrouter/internal/models"
	"commrouter/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
// See staticcheck SA1029 guidance
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// WithVerboseLogging marks ctx so intake logs unmasked identifiers.
func WithVerboseLogging(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeMessageID shortens provider message ids for logs
func SanitizeMessageID(msgID string) string {
	msgID = strings.Trim(msgID, "<>")
	if msgID == "" {
		return ""
	}
	if len(msgID) > constants.DefaultMessageIDLength {
		return msgID[:constants.DefaultMessageIDLength] + "..."
	}
	return msgID
}

// SanitizeAddresses masks every address of a recipient list
func SanitizeAddresses(addresses []string) []string {
	if len(addresses) == 0 {
		return nil
	}
	masked := make([]string, len(addresses))
	for i, a := range addresses {
		masked[i] = privacy.MaskIdentifier(a)
	}
	return masked
}

// SanitizeContent completely hides message content for privacy
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}
	return "[hidden]"
}

// LogWithContext creates a logger entry with optional sensitive information
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("verbose", IsVerboseLogging(ctx))
}

// ValidateMessageID performs basic message ID validation
func ValidateMessageID(msgID string) error {
	if msgID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	if len(msgID) > constants.MaxMessageIDLength {
		return fmt.Errorf("message ID too long (max %d characters)", constants.MaxMessageIDLength)
	}

	if strings.ContainsAny(msgID, "\x00\n\r\t") {
		return fmt.Errorf("message ID contains invalid characters")
	}

	return nil
}

// LogInbound logs an inbound message with appropriate privacy controls
func LogInbound(ctx context.Context, logger *logrus.Logger, msg *models.InboundMessage) {
	if IsVerboseLogging(ctx) {
		logger.WithFields(logrus.Fields{
			LogFieldChannel:   msg.Channel,
			LogFieldMessageID: msg.MessageID,
			LogFieldFrom:      msg.From,
			LogFieldTo:        msg.To,
			LogFieldCc:        msg.Cc,
			"text":            msg.Text,
		}).Info("Processing inbound message")
		return
	}
	logger.WithFields(logrus.Fields{
		LogFieldChannel:   msg.Channel,
		LogFieldMessageID: SanitizeMessageID(msg.MessageID),
		LogFieldFrom:      privacy.MaskIdentifier(msg.From),
		LogFieldTo:        SanitizeAddresses(msg.To),
		LogFieldCc:        SanitizeAddresses(msg.Cc),
	}).Info("Processing inbound message")
}
