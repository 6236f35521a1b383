package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/stylinx/pkg/logger"
)

// RequestLogger stores a request-scoped logger carrying correlation_id,
// trace_id and span_id in the context; handlers fetch it with
// logger.FromContext. Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionScope adds the {sessionId} URL parameter to the context and to the
// request-scoped logger. Mount it inside a route that declares the parameter.
func SessionScope(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, SessionIDParam)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := logger.WithSessionID(r.Context(), id)
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
