package reqctx

import (
	"context"

	"go.uber.org/zap"
)

type ContextKey string

const (
	CorrelationIDKey ContextKey = "correlation_id"
	RequestIDKey     ContextKey = "request_id"
)

// Logger returns baseLogger enriched with the ids stored in ctx.
func Logger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	logger := baseLogger

	if id := CorrelationID(ctx); id != "" {
		logger = logger.With(zap.String(string(CorrelationIDKey), id))
	}
	if id := RequestID(ctx); id != "" {
		logger = logger.With(zap.String(string(RequestIDKey), id))
	}

	return logger
}

// WithCorrelationID adds a scrape job correlation id to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds an HTTP request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
