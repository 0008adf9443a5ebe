package errors

import (
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with structured error logging
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger
func NewLogger() *Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{Logger: logger}
}

// FromLogrus reuses an already configured logrus logger.
func FromLogrus(l *logrus.Logger) *Logger {
	return &Logger{Logger: l}
}

// WithError adds an error and its AppError context to subsequent log entries
func (l *Logger) WithError(err error) *logrus.Entry {
	entry := l.Logger.WithError(err)
	if appErr, ok := As(err); ok {
		entry = entry.WithFields(logrus.Fields{
			"error_code": appErr.Code,
			"retryable":  appErr.Retryable,
		})
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}
	return entry
}

func (l *Logger) entry(err error, fields []logrus.Fields) *logrus.Entry {
	entry := l.WithError(err)
	for _, field := range fields {
		entry = entry.WithFields(field)
	}
	return entry
}

// LogError logs an error with structured context
func (l *Logger) LogError(err error, message string, fields ...logrus.Fields) {
	l.entry(err, fields).Error(message)
}

// LogWarn logs a warning with structured context
func (l *Logger) LogWarn(err error, message string, fields ...logrus.Fields) {
	l.entry(err, fields).Warn(message)
}

// LogRoutingError picks the level from the error class: duplicates are info,
// retryable failures warn, fatal routing failures are errors.
func (l *Logger) LogRoutingError(err error, message string, fields ...logrus.Fields) {
	switch {
	case Is(err, ErrCodeDuplicateMessage):
		l.entry(err, fields).Info(message)
	case IsRetryable(err):
		l.LogWarn(err, message, fields...)
	default:
		l.LogError(err, message, fields...)
	}
}
