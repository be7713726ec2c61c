package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/metrics"
)

// Tracing times requests and records them to metrics, tagging each with a
// request ID for correlation in logs.
type Tracing struct {
	m      *metrics.Metrics
	logger zerolog.Logger
}

// NewTracing creates a Tracing middleware.
func NewTracing(m *metrics.Metrics, logger zerolog.Logger) *Tracing {
	return &Tracing{
		m:      m,
		logger: logger.With().Str("component", "tracing").Logger(),
	}
}

// Middleware wraps next, recording request duration and status to metrics
// and logging each request at debug level.
func (t *Tracing) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-amz-request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("x-amz-request-id", requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		next.ServeHTTP(ww, r)
		duration := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if t.m != nil {
			t.m.RecordRequest(r.Method, strconv.Itoa(status), duration.Seconds())
		}

		t.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Int("bytes", ww.BytesWritten()).
			Msg("request handled")
	})
}
