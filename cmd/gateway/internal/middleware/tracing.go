package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/tracing"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	spanIDKey  ctxKey = "span_id"
)

// TraceID returns the request trace id set by TracingMiddleware.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// TracingMiddleware provides distributed tracing support
type TracingMiddleware struct {
	logger *zap.Logger
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(logger *zap.Logger) *TracingMiddleware {
	return &TracingMiddleware{
		logger: logger,
	}
}

// Middleware returns the HTTP middleware function
func (tm *TracingMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := tm.extractTraceID(r)
		if traceID == "" {
			traceID = tm.generateTraceID()
		}
		spanID := tm.generateSpanID()

		route := r.Pattern
		if route == "" {
			route = r.Method + " " + r.URL.Path
		}
		ctx, span := tracing.StartSpan(r.Context(), route)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.request_id", traceID),
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)

		ctx = context.WithValue(ctx, traceIDKey, traceID)
		ctx = context.WithValue(ctx, spanIDKey, spanID)

		w.Header().Set("X-Trace-ID", traceID)
		w.Header().Set("X-Span-ID", spanID)
		if tp := tracing.W3CTraceparent(ctx); tp != "" {
			w.Header().Set("traceparent", tp)
		}

		tm.logger.Debug("Request received",
			zap.String("trace_id", traceID),
			zap.String("span_id", spanID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractTraceID extracts trace ID from request headers
func (tm *TracingMiddleware) extractTraceID(r *http.Request) string {
	// W3C Trace Context: version-traceid-spanid-flags
	if traceparent := r.Header.Get("traceparent"); traceparent != "" {
		parts := strings.Split(traceparent, "-")
		if len(parts) >= 2 && parts[1] != "" {
			return parts[1]
		}
	}

	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		return traceID
	}

	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		return requestID
	}

	return ""
}

func (tm *TracingMiddleware) generateTraceID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (tm *TracingMiddleware) generateSpanID() string {
	return strings.ReplaceAll(uuid.New().String()[:18], "-", "")
}
