// Package middleware holds the HTTP middleware shared by the explorer API
// and the place backend.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLength = 64

type requestInfoKey struct{}

// requestInfo is created once per request by RequestID. Middleware further
// in fills fields the outer layers read once the handler returns.
type requestInfo struct {
	id     string
	userID string
}

// RequestID assigns every request an id, reusing a well-formed incoming
// X-Request-Id so a trace can be followed from the place backend to the API.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestInfoKey{}, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

// noteUser records the authenticated user for the access log and the span.
func noteUser(ctx context.Context, userID string) {
	if info := infoFrom(ctx); info != nil {
		info.userID = userID
	}
}

func requestUserID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.userID
	}
	return ""
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// validRequestID accepts short ids made of letters, digits and . _ : -
// so a caller cannot inject arbitrary text into logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}
