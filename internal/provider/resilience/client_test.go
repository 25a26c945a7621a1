package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

// upstream counts calls and answers with the status statusFor returns for
// the n-th call (1-based).
func upstream(t *testing.T, statusFor func(n int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statusFor(calls.Add(1)))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func get(t *testing.T, ctx context.Context, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return client.Do(req)
}

func fastRetries(name string, retries uint64) resilience.ClientConfig {
	breaker := resilience.DefaultCircuitBreakerConfig(name)
	breaker.ReadyToTrip = resilience.TripAfter(0, 100, 0.5)
	return resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		CircuitBreaker:  &breaker,
	}
}

func TestClient_Success(t *testing.T) {
	server, calls := upstream(t, func(int32) int { return http.StatusOK })

	resp, err := get(t, context.Background(), resilience.NewClient(resilience.DefaultClientConfig("weather")), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	server, calls := upstream(t, func(n int32) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})

	resp, err := get(t, context.Background(), resilience.NewClient(fastRetries("retry", 5)), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ReturnsLastServerError(t *testing.T) {
	server, calls := upstream(t, func(int32) int { return http.StatusBadGateway })

	resp, err := get(t, context.Background(), resilience.NewClient(fastRetries("exhausted", 2)), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "first attempt plus two retries")
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	server, calls := upstream(t, func(int32) int { return http.StatusTooManyRequests })

	resp, err := get(t, context.Background(), resilience.NewClient(fastRetries("4xx", 3)), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SingleShot(t *testing.T) {
	server, calls := upstream(t, func(int32) int { return http.StatusServiceUnavailable })

	cfg := resilience.SingleShotClientConfig("single-shot")
	require.True(t, cfg.DisableRetries)

	resp, err := get(t, context.Background(), resilience.NewClient(cfg), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpens(t *testing.T) {
	server, calls := upstream(t, func(int32) int { return http.StatusInternalServerError })
	client := resilience.NewClient(resilience.SingleShotClientConfig("trip"))

	for i := 0; i < resilience.DefaultConsecutiveFailures; i++ {
		resp, err := get(t, context.Background(), client, server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	resp, err := get(t, context.Background(), client, server.URL)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(resilience.DefaultConsecutiveFailures), calls.Load(), "an open breaker does not call the upstream")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastRetries("slow", 0)
	cfg.DisableRetries = true
	cfg.Timeout = 50 * time.Millisecond
	client := resilience.NewClient(cfg)

	resp, err := get(t, context.Background(), client, server.URL)
	assert.Nil(t, resp)
	assert.Error(t, err)
	assert.Equal(t, uint32(1), client.Counts().TotalFailures)
}

func TestClient_CancelledCallsDoNotCount(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	registry := resilience.NewRegistry()
	cfg := resilience.SingleShotClientConfig("superseded")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	resp, err := get(t, ctx, client, server.URL)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, client.Counts().TotalFailures)
	health := registry.Health("superseded")
	require.NotNil(t, health)
	assert.Empty(t, health.LastError)
	assert.Equal(t, resilience.LevelUp, health.Level())
}

func TestClient_RetriesResendBody(t *testing.T) {
	bodies := make(chan string, 4)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader(`{"text":"Xin chào"}`))
	require.NoError(t, err)

	resp, err := resilience.NewClient(fastRetries("body", 2)).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	close(bodies)
	var got []string
	for body := range bodies {
		got = append(got, body)
	}
	assert.Equal(t, []string{`{"text":"Xin chào"}`, `{"text":"Xin chào"}`}, got)
}

func TestClient_UserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
	}))
	defer server.Close()

	cfg := resilience.SingleShotClientConfig("agent")
	cfg.UserAgent = "Vietnam-Explorer/1.0"
	client := resilience.NewClient(cfg)

	resp, err := get(t, context.Background(), client, server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/2.0")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Vietnam-Explorer/1.0", <-agents)
	assert.Equal(t, "custom/2.0", <-agents)
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := resilience.DefaultCircuitBreakerConfig("openweathermap")

	assert.Equal(t, "openweathermap", cfg.Name)
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Interval)
	assert.NotNil(t, cfg.ReadyToTrip)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"no requests", gobreaker.Counts{}, false},
		{"two failures in a row", gobreaker.Counts{Requests: 2, TotalFailures: 2, ConsecutiveFailures: 2}, false},
		{"three failures in a row", gobreaker.Counts{Requests: 3, TotalFailures: 3, ConsecutiveFailures: 3}, true},
		{"high rate below minimum volume", gobreaker.Counts{Requests: 9, TotalFailures: 6, ConsecutiveFailures: 1}, false},
		{"low rate at volume", gobreaker.Counts{Requests: 10, TotalFailures: 4, ConsecutiveFailures: 1}, false},
		{"half failing at volume", gobreaker.Counts{Requests: 10, TotalFailures: 5, ConsecutiveFailures: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.DefaultReadyToTrip(tt.counts))
		})
	}
}

func TestTripAfter_RateOnly(t *testing.T) {
	trip := resilience.TripAfter(0, 4, 0.75)

	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2, ConsecutiveFailures: 2}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 3, ConsecutiveFailures: 3}))
}

func TestDefaultIsSuccessful(t *testing.T) {
	assert.True(t, resilience.DefaultIsSuccessful(nil))
	assert.True(t, resilience.DefaultIsSuccessful(context.Canceled))
	assert.False(t, resilience.DefaultIsSuccessful(context.DeadlineExceeded))
	assert.False(t, resilience.DefaultIsSuccessful(&resilience.ServerError{StatusCode: http.StatusBadGateway}))
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("probe")

	assert.Equal(t, "probe", cfg.Name)
	assert.False(t, cfg.DisableRetries)
	assert.Equal(t, resilience.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, uint64(resilience.DefaultMaxRetries), cfg.MaxRetries)
	require.NotNil(t, cfg.CircuitBreaker)
	assert.Equal(t, "probe", cfg.CircuitBreaker.Name)
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "server error: Internal Server Error", err.Error())
}

func TestClient_RegistersWithRegistry(t *testing.T) {
	registry := resilience.NewRegistry()

	cfg := resilience.SingleShotClientConfig("nominatim")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	assert.Equal(t, "nominatim", client.Name())
	require.Equal(t, 1, registry.Len())
	assert.Equal(t, "nominatim", registry.Snapshot()[0].Name)
}
