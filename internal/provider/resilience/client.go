package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the upstream while its breaker
// is open, or half-open with its trial request in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client defaults.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name identifies the upstream in the registry and names its breaker.
	Name string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries bounds retries after the first attempt. DisableRetries
	// makes every call single-shot.
	MaxRetries     uint64
	DisableRetries bool

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// UserAgent is sent on requests that do not carry one.
	UserAgent string

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, tracks the upstream's health.
	Registry *Registry
}

// DefaultClientConfig returns a retrying client configuration. Background
// work such as the worker's probes uses it.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         DefaultTimeout,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		CircuitBreaker:  &breaker,
	}
}

// SingleShotClientConfig returns the configuration of user-facing clients.
// A failure is shown to the user as it happens instead of being retried.
func SingleShotClientConfig(name string) ClientConfig {
	cfg := DefaultClientConfig(name)
	cfg.DisableRetries = true
	return cfg
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.DisableRetries:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	return cfg
}

// Client calls one upstream through a circuit breaker. Network errors and
// 5xx responses count as failures and are retried with exponential backoff
// unless retries are disabled.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry
}

// NewClient creates a client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	breaker := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		breaker = *cfg.CircuitBreaker
	}
	if cfg.Registry != nil {
		breaker.OnStateChange = reportTransitions(cfg.Registry, cfg.Name, breaker.OnStateChange)
	}

	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  NewCircuitBreaker[*http.Response](breaker), //nolint:bodyclose // type parameter
		registry: cfg.Registry,
	}
	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}
	return c
}

func reportTransitions(registry *Registry, name string, next func(string, gobreaker.State, gobreaker.State)) func(string, gobreaker.State, gobreaker.State) {
	return func(breaker string, from, to gobreaker.State) {
		registry.RecordTransition(name, to)
		if next != nil {
			next(breaker, from, to)
		}
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker's counts for the current interval.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req under the request's context. A 5xx that is still failing
// after the last attempt is returned as a response, not an error, so the
// caller can map its status; the caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil && last != resp {
			_ = last.Body.Close()
		}
		last = resp
	}

	err := backoff.Retry(func() error {
		resp, err := c.attempt(ctx, req)
		if resp != nil {
			keep(resp)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}, c.policy(ctx))

	c.report(err)
	if err != nil && last == nil {
		return nil, err
	}
	return last, nil
}

func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		out.Body = body
	}
	if c.cfg.UserAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(out)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &ServerError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.MaxInterval = c.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.MaxRetries), ctx)
}

func (c *Client) report(err error) {
	switch {
	case c.registry == nil:
	case err == nil:
		c.registry.RecordSuccess(c.cfg.Name)
	case errors.Is(err, context.Canceled):
	default:
		c.registry.RecordFailure(c.cfg.Name, err)
	}
}

// ServerError is the failure recorded for a 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
