package common

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID     contextKey = "run_id"
	ContextKeyRequestID contextKey = "request_id"
)

// WithRunID adds a pipeline run ID to the context
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the pipeline run ID from context
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if runID, ok := ctx.Value(ContextKeyRunID).(uuid.UUID); ok {
		return runID
	}
	return uuid.Nil
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context, minting one if absent.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		return requestID
	}
	return uuid.New().String()
}
