// Package resilience wraps calls to the explorer's upstreams (place backend,
// weather, geocoding, routing, translation) with circuit breakers, timeouts
// and optional retries, and keeps a registry of their health.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker defaults. A user waits on most upstream calls, so an open breaker
// is retried after half a minute rather than a full one.
const (
	DefaultBreakerTimeout  = 30 * time.Second
	DefaultBreakerInterval = 2 * time.Minute

	// A run of consecutive failures trips the breaker regardless of volume.
	DefaultConsecutiveFailures = 3
	// Otherwise at least this many requests with half of them failing.
	DefaultMinRequests = 10
	DefaultFailureRate = 0.5
)

// CircuitBreakerConfig configures the breaker of one upstream.
type CircuitBreakerConfig struct {
	// Name is the upstream name. It shows up in health reports.
	Name string

	// MaxRequests is the number of trial requests let through while half-open.
	MaxRequests uint32

	// Interval clears the counts while closed, so old failures age out.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// ReadyToTrip defaults to DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// IsSuccessful decides which errors count against the upstream.
	// Defaults to DefaultIsSuccessful.
	IsSuccessful func(err error) bool

	// OnStateChange is called after every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for every
// upstream unless a client overrides them.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    DefaultBreakerInterval,
		Timeout:     DefaultBreakerTimeout,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// TripAfter builds a ReadyToTrip that opens after consecutive failures in a
// row, or once minRequests have been seen with at least rate of them failing.
func TripAfter(consecutive, minRequests uint32, rate float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if consecutive > 0 && counts.ConsecutiveFailures >= consecutive {
			return true
		}
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= rate
	}
}

// DefaultReadyToTrip trips on three failures in a row or on a 50% failure
// rate over ten or more requests.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return TripAfter(DefaultConsecutiveFailures, DefaultMinRequests, DefaultFailureRate)(counts)
}

// DefaultIsSuccessful does not hold a call the caller gave up on against
// the upstream, such as a client that disconnected mid-request or a screen
// that was unmounted.
func DefaultIsSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a breaker from cfg. Zero fields take the
// defaults of DefaultCircuitBreakerConfig.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerTimeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = DefaultReadyToTrip
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = DefaultIsSuccessful
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		IsSuccessful:  cfg.IsSuccessful,
		OnStateChange: cfg.OnStateChange,
	})
}
