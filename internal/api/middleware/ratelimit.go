package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig is a fixed budget of requests per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Rate limits of the explorer. Searches and chat turns each fan out to
// several upstream calls, so they get a tighter budget than plain reads.
var (
	// AuthRateLimit guards sign-up, sign-in and token refresh, per IP.
	AuthRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// ScreenActionRateLimit guards searches and chat turns, per user.
	ScreenActionRateLimit = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}

	// UpstreamRateLimit guards translation and routing, per user.
	UpstreamRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit applies to everything else behind a session.
	StandardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address. RealIP must run first for the
// address to reflect X-Forwarded-For.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser limits by the signed-in user, falling back to the client
// address for anonymous requests.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByUserOrIP)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; a full window is the
			// longest the caller can have to wait.
			w.Header().Set("Retry-After", retryAfter)
			writeProblem(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}
