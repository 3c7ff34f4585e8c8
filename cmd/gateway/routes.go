package main

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/epion-news/epion/cmd/gateway/internal/handlers"
	"github.com/epion-news/epion/cmd/gateway/internal/middleware"
	"github.com/epion-news/epion/internal/annotate"
)

// newRouter wires every gateway route. limiter may be nil to disable rate
// limiting.
func newRouter(svc *annotate.Service, checks map[string]handlers.Pinger, limiter *middleware.RateLimiter, allowedOrigins []string, logger *zap.Logger) http.Handler {
	citationHandler := handlers.NewCitationHandler(svc, logger)
	annotationHandler := handlers.NewAnnotationHandler(svc, logger)
	streamHandler := handlers.NewStreamHandler(svc, allowedOrigins, logger)
	healthHandler := handlers.NewHealthHandler(checks, version, logger)

	tracingMiddleware := middleware.NewTracingMiddleware(logger).Middleware
	rateLimiter := func(next http.Handler) http.Handler { return next }
	if limiter != nil {
		rateLimiter = limiter.Middleware
	}

	mux := http.NewServeMux()

	// Health and metrics, never rate limited
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /readiness", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Citation parsing
	mux.Handle("POST /api/v1/citations/segments",
		tracingMiddleware(rateLimiter(http.HandlerFunc(citationHandler.Segments))))
	mux.Handle("POST /api/v1/citations/inline",
		tracingMiddleware(rateLimiter(http.HandlerFunc(citationHandler.Inline))))
	mux.Handle("POST /api/v1/citations/annotate",
		tracingMiddleware(rateLimiter(http.HandlerFunc(citationHandler.Annotate))))

	// Stored content
	mux.Handle("GET /api/v1/articles/{id}/summary/annotated",
		tracingMiddleware(rateLimiter(http.HandlerFunc(annotationHandler.ArticleSummary))))
	mux.Handle("GET /api/v1/chat/messages/{id}/annotated",
		tracingMiddleware(rateLimiter(http.HandlerFunc(annotationHandler.ChatMessage))))

	// Streaming annotation; only the upgrade request is rate limited
	mux.Handle("GET /api/v1/citations/stream",
		tracingMiddleware(rateLimiter(http.HandlerFunc(streamHandler.Stream))))

	return corsMiddleware(allowedOrigins)(mux)
}

// corsMiddleware answers preflight requests and sets CORS headers for the
// configured origins. "*" allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	allowedHeaders := strings.Join([]string{
		"Content-Type", "X-Request-ID", "X-Trace-ID", "traceparent", "tracestate",
	}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
