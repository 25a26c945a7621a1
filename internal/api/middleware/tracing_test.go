package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
)

// recordSpans installs a recording tracer provider for the duration of t.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

// onlySpan returns the single ended span and its attributes by key.
func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) (sdktrace.ReadOnlySpan, map[attribute.Key]attribute.Value) {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return spans[0], attrs
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
}

func TestTracing_SpanInContext(t *testing.T) {
	sr := recordSpans(t)

	var inner trace.SpanContext
	h := middleware.Tracing("explorer-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = trace.SpanFromContext(r.Context()).SpanContext()
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/places?q=hue", http.NoBody))

	span, attrs := onlySpan(t, sr)
	assert.True(t, inner.IsValid())
	assert.Equal(t, inner.SpanID(), span.SpanContext().SpanID())
	assert.Equal(t, "GET /v1/places", span.Name(), "unrouted requests use the path")
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "q=hue", attrs["url.query"].AsString())
	assert.Equal(t, int64(200), attrs["http.response.status_code"].AsInt64())
}

func TestTracing_ContinuesCallerTrace(t *testing.T) {
	sr := recordSpans(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/places", http.NoBody)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	middleware.Tracing("explorer-test")(statusHandler(http.StatusOK)).ServeHTTP(httptest.NewRecorder(), req)

	span, _ := onlySpan(t, sr)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
}

func TestTracing_Status(t *testing.T) {
	tests := []struct {
		status int
		code   codes.Code
	}{
		{http.StatusOK, codes.Unset},
		{http.StatusNotFound, codes.Unset},
		{http.StatusBadGateway, codes.Error},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := recordSpans(t)
			middleware.Tracing("explorer-test")(statusHandler(tt.status)).
				ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/route", http.NoBody))

			span, attrs := onlySpan(t, sr)
			assert.Equal(t, int64(tt.status), attrs["http.response.status_code"].AsInt64())
			assert.Equal(t, tt.code, span.Status().Code)
			if tt.code == codes.Error {
				assert.Equal(t, "Bad Gateway", span.Status().Description)
			}
		})
	}
}

func TestTracing_RequestID(t *testing.T) {
	sr := recordSpans(t)

	rec := httptest.NewRecorder()
	middleware.RequestID(middleware.Tracing("explorer-test")(statusHandler(http.StatusOK))).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/places", http.NoBody))

	_, attrs := onlySpan(t, sr)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), attrs["request.id"].AsString())
	assert.Contains(t, attrs["request.id"].AsString(), "req_")
}

func TestTracing_Routes(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("explorer-test"))
	r.Post("/v1/screens/{screenId}/search", statusHandler(http.StatusAccepted).ServeHTTP)

	req := httptest.NewRequest(http.MethodPost, "/v1/screens/scr_42/search?access_token=secret", http.NoBody)
	r.ServeHTTP(httptest.NewRecorder(), req)

	span, attrs := onlySpan(t, sr)
	assert.Equal(t, "POST /v1/screens/{screenId}/search", span.Name())
	assert.Equal(t, "/v1/screens/{screenId}/search", attrs["http.route"].AsString())
	assert.Equal(t, "scr_42", attrs["explorer.screen_id"].AsString())
	assert.False(t, attrs["explorer.stream"].AsBool())
	assert.NotContains(t, attrs["url.query"].AsString(), "secret")
	assert.NotContains(t, attrs, attribute.Key("enduser.id"))
}

func TestTracing_SkipsProbes(t *testing.T) {
	sr := recordSpans(t)

	h := middleware.Tracing("explorer-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/healthz", "/v1/ops/health", "/v1/ops/ready"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.Empty(t, sr.Ended())
}
