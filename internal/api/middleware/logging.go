package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger writes one access log line per request. Server errors log at error
// level and client errors at warn; probe endpoints only log at debug.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			event := accessLogEvent(log, r, sw.statusCode)
			if !event.Enabled() {
				return
			}

			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				event = event.
					Str("trace_id", sc.TraceID().String()).
					Str("span_id", sc.SpanID().String())
			}
			if userID := requestUserID(r.Context()); userID != "" {
				event = event.Str("user_id", userID)
			}
			if id := screenID(r); id != "" {
				event = event.Str("screen_id", id)
			}

			event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", sw.statusCode).
				Int64("bytes", sw.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Bool("upgraded", sw.hijacked).
				Msg("request completed")
		})
	}
}

func accessLogEvent(log zerolog.Logger, r *http.Request, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case isProbe(r):
		return log.Debug()
	default:
		return log.Info()
	}
}

// isProbe reports liveness and readiness checks, which load balancers hit
// every few seconds.
func isProbe(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := r.URL.Path
	return p == "/healthz" || strings.HasPrefix(p, "/v1/ops/health") || strings.HasPrefix(p, "/v1/ops/ready")
}
