package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

// requestID attaches a correlation ID to every request. An inbound
// X-Request-ID is honored, otherwise one is generated; either way the ID is
// echoed on the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLog logs one line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// recovery converts a handler panic into a sanitized 500 envelope.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"path", r.URL.Path,
					"panic", rec,
					"request_id", RequestIDFromContext(r.Context()),
				)
				respondError(w, r, apperrors.Internal(r.URL.Path, nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireConnection gates trading routes behind the lazy self-healing check:
// the session is revalidated (and reconnected if needed) before the handler
// runs. Health routes bypass this.
func (s *Server) requireConnection(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.conn.Ensure(r.Context()); err != nil {
			respondError(w, r, err)
			return
		}
		next(w, r)
	}
}
