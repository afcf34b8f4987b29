package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"asanapdf/internal/service"
)

type contextKey string

const (
	traceIDKey contextKey = "traceID"
	serviceKey contextKey = "service"
)

// TraceHeader carries the trace id back to the client.
const TraceHeader = "X-Trace-ID"

// TraceID returns the trace id of the request context, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// traceMiddleware tags every request with a trace id used in logs and
// error bodies.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(TraceHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceIDKey, id)))
	})
}

// requestLogger logs one line per request. Query strings are left out
// because the OAuth callback carries the authorization code.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"trace_id", TraceID(r.Context()))
		})
	}
}

// bearerAuth builds a Service for the request's bearer token.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		svc, err := s.services(r.Context(), strings.TrimSpace(token))
		if err != nil {
			RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create Asana client", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), serviceKey, svc)))
	})
}

// serviceFrom returns the Service installed by bearerAuth.
func serviceFrom(ctx context.Context) (service.Service, bool) {
	svc, ok := ctx.Value(serviceKey).(service.Service)
	return svc, ok
}
