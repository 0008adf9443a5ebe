package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commrouter/internal/constants"
	apperrors "commrouter/internal/errors"
)

// retryableDBOperationNoReturn executes a write, retrying briefly while SQLite reports contention
func retryableDBOperationNoReturn(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := time.Duration(constants.DefaultBackoffInitialMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableDBError(err) {
			return classifyDBError(operationName, err)
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * initialBackoff):
		}
	}

	return classifyDBError(operationName, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr))
}

// classifyDBError turns driver errors into routing error codes: contention is
// TRANSIENT_STORAGE for the caller's queue to retry, a uniqueness conflict is
// DUPLICATE_MESSAGE, anything else a plain database error.
func classifyDBError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case isRetryableDBError(err):
		return apperrors.NewTransientStorageError(operation, err)
	case isUniqueViolation(err):
		return apperrors.Wrap(err, apperrors.ErrCodeDuplicateMessage, operation+" hit an existing record").
			WithContext("operation", operation)
	default:
		return apperrors.NewDatabaseError(operation, err)
	}
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	for _, transient := range []string{"database is locked", "database table is locked", "disk I/O error", "SQLITE_BUSY"} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
