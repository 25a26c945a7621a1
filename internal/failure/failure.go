// Package failure classifies errors returned by the explorer's API clients.
//
// Every client maps its failures onto one of a small set of kinds so that callers
// can decide how to present them without knowing which upstream produced them:
//
//   - Validation: malformed or empty local input, never reaches the network
//   - NotFound: the target resource is absent
//   - NetworkUnavailable: transport failure, open circuit, or upstream 503/504
//   - Timeout: the transport reported a deadline
//   - Server: any other non-success response, optionally with a detail message
//   - Auth: identity provider failure, carrying a provider error code
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

// Kind sentinels. A *Error always wraps exactly one of these.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTimeout            = errors.New("request timeout")
	ErrServer             = errors.New("server error")
	ErrAuth               = errors.New("authentication error")
)

// Kind names a failure class.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindNetworkUnavailable Kind = "NETWORK_UNAVAILABLE"
	KindTimeout            Kind = "TIMEOUT"
	KindServer             Kind = "SERVER_ERROR"
	KindAuth               Kind = "AUTH_ERROR"
	KindUnknown            Kind = "UNKNOWN"
)

// Error provides detailed error information from a client.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code, provider-specific for Auth
	Message  string // Human-readable detail
	Err      error  // Kind sentinel
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Provider + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error. Errors that are not *Error report KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNetworkUnavailable):
		return KindNetworkUnavailable
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrServer):
		return KindServer
	case errors.Is(err, ErrAuth):
		return KindAuth
	default:
		return KindUnknown
	}
}

// Detail returns the human-readable message of a classified error, if any.
func Detail(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return ""
}

// Validation builds a validation failure.
func Validation(provider, message string) *Error {
	return &Error{Provider: provider, Code: "VALIDATION", Message: message, Err: ErrValidation}
}

// NotFound builds a not-found failure.
func NotFound(provider, message string) *Error {
	return &Error{Provider: provider, Code: "NOT_FOUND", Message: message, Err: ErrNotFound}
}

// Server builds an unclassified server failure.
func Server(provider, code, message string) *Error {
	return &Error{Provider: provider, Code: code, Message: message, Err: ErrServer}
}

// Auth builds an identity provider failure keyed by provider code.
func Auth(provider, code, message string) *Error {
	return &Error{Provider: provider, Code: code, Message: message, Err: ErrAuth}
}

// FromTransport classifies an error returned by the HTTP transport.
func FromTransport(provider string, err error) *Error {
	if isTimeout(err) {
		return &Error{Provider: provider, Code: "TIMEOUT", Message: "request timed out", Err: ErrTimeout}
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &Error{Provider: provider, Code: "CIRCUIT_OPEN", Message: "provider temporarily disabled", Err: ErrNetworkUnavailable}
	}
	return &Error{Provider: provider, Code: "REQUEST_FAILED", Message: "unable to connect", Err: ErrNetworkUnavailable}
}

// FromStatus classifies a non-success HTTP status. detail is the upstream's
// human-readable message, if it sent one.
func FromStatus(provider string, status int, detail string) *Error {
	switch status {
	case http.StatusNotFound:
		return NotFound(provider, detail)
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Provider: provider, Code: fmt.Sprintf("HTTP_%d", status), Message: detail, Err: ErrNetworkUnavailable}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Provider: provider, Code: fmt.Sprintf("HTTP_%d", status), Message: detail, Err: ErrValidation}
	default:
		if detail == "" {
			detail = fmt.Sprintf("HTTP error! status: %d", status)
		}
		return Server(provider, fmt.Sprintf("HTTP_%d", status), detail)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
