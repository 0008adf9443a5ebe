package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// requestInfo is the correlation data carried through one inbound request
// or CLI invocation. It is copied on every update, never mutated in place.
type requestInfo struct {
	requestID string
	traceID   string
	startedAt time.Time
}

func infoFrom(ctx context.Context) requestInfo {
	info, _ := ctx.Value(contextKey{}).(requestInfo)
	return info
}

func withInfo(ctx context.Context, update func(*requestInfo)) context.Context {
	info := infoFrom(ctx)
	update(&info)
	return context.WithValue(ctx, contextKey{}, info)
}

// GenerateRequestID returns a new request id. Event envelopes reuse it as
// their correlation id.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withInfo(ctx, func(info *requestInfo) { info.requestID = requestID })
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withInfo(ctx, func(info *requestInfo) { info.traceID = traceID })
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return withInfo(ctx, func(info *requestInfo) { info.startedAt = startTime })
}

// GetRequestID returns "" outside a request
func GetRequestID(ctx context.Context) string {
	return infoFrom(ctx).requestID
}

// GetTraceID returns the trace id mirrored from the request span, falling
// back to the span in ctx when none was mirrored.
func GetTraceID(ctx context.Context) string {
	if traceID := infoFrom(ctx).traceID; traceID != "" {
		return traceID
	}
	return GetOtelTraceID(ctx)
}

// Duration reports the time elapsed since WithStartTime, or 0 when unset.
func Duration(ctx context.Context) time.Duration {
	startedAt := infoFrom(ctx).startedAt
	if startedAt.IsZero() {
		return 0
	}
	return time.Since(startedAt)
}
