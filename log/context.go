package log

import (
	"context"

	"github.com/google/uuid"
)

type ContextKey string

const (
	ContextKeyTraceID   ContextKey = "logContextKeyTraceID"
	ContextKeySessionID ContextKey = "logContextKeySessionID"
)

// PutTraceID attaches a trace id to the context
func PutTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, traceID)
}

// NewTraceID attaches a freshly generated trace id to the context
func NewTraceID(ctx context.Context) context.Context {
	return PutTraceID(ctx, uuid.New().String())
}

// GetTraceID returns the trace id of the context or an empty
// string if none was set
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(ContextKeyTraceID).(string)
	if !ok {
		return ""
	}

	return traceID
}

// PutSessionID attaches the session a request arrived through
func PutSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// GetSessionID returns the session id of the context or an empty
// string if the request did not arrive through a session
func GetSessionID(ctx context.Context) string {
	sessionID, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}

	return sessionID
}
