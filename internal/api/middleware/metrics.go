package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request metrics. Event streams are counted separately from
// plain requests since they stay open for the life of a screen.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requests        metric.Int64Counter
	inFlight        metric.Int64UpDownCounter
	responseSize    metric.Int64Histogram
	streams         metric.Int64Counter
	streamDuration  metric.Float64Histogram
}

// NewMetrics creates the HTTP instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating request duration histogram: %w", err)
	}
	if m.requests, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("creating requests counter: %w", err)
	}
	if m.inFlight, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests being served, streams included"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("creating active requests counter: %w", err)
	}
	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("creating response size histogram: %w", err)
	}
	if m.streams, err = meter.Int64Counter(
		"explorer.streams",
		metric.WithDescription("Event streams opened"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, fmt.Errorf("creating streams counter: %w", err)
	}
	if m.streamDuration, err = meter.Float64Histogram(
		"explorer.stream.duration",
		metric.WithDescription("How long event streams stayed open"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating stream duration histogram: %w", err)
	}

	return &m, nil
}

// Middleware records every request that passes through it.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start).Seconds()

			route := attribute.String("http.route", routePattern(r))
			if sw.hijacked {
				attrs := metric.WithAttributes(route)
				m.streams.Add(ctx, 1, attrs)
				m.streamDuration.Record(ctx, elapsed, attrs)
				return
			}

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				route,
				attribute.String("http.response.status_code", strconv.Itoa(sw.statusCode)),
				attribute.Bool("error", sw.statusCode >= http.StatusBadRequest),
			)
			m.requestDuration.Record(ctx, elapsed, attrs)
			m.requests.Add(ctx, 1, attrs)
			m.responseSize.Record(ctx, sw.written, attrs)
		})
	}
}
