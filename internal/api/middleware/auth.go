package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vietnamexplorer/explorer/internal/auth"
)

// Authenticator resolves an access token to a live session.
// *auth.Service satisfies this interface.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.SessionContext, error)
}

// headerError explains why no token could be read from a request.
type headerError string

func (e headerError) Error() string { return string(e) }

const (
	errNoToken     headerError = "missing authorization header"
	errBadScheme   headerError = "invalid authorization header format"
	errEmptyBearer headerError = "missing bearer token"
)

// tokenFailures maps Authenticate errors to what the caller is told.
var tokenFailures = []struct {
	err    error
	detail string
}{
	{auth.ErrAccessTokenExpired, "access token has expired"},
	{auth.ErrInvalidAccessToken, "invalid access token"},
	{auth.ErrSessionRevoked, "session has been signed out"},
}

// Auth requires a bearer token and stores the resolved session in the
// request context. WebSocket upgrades may send the token as the access_token
// query parameter since browsers cannot set headers on the handshake.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, err := authenticate(r, authenticator)
			if err != nil {
				unauthorized(w, r, failureDetail(err))
				return
			}
			next.ServeHTTP(w, withSession(r, sc))
		})
	}
}

// OptionalAuth attaches the session when the token resolves and lets every
// request through. A bad token reads as signed out.
func OptionalAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc, err := authenticate(r, authenticator); err == nil {
				r = withSession(r, sc)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified rejects sessions whose email is not verified. Run it
// after Auth.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := auth.SessionFromContext(r.Context())
		switch {
		case !ok:
			unauthorized(w, r, "authentication required")
		case !sc.EmailVerified:
			writeProblem(w, r, http.StatusForbidden, auth.MessageEmailNotVerified)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// GetUserID returns the signed-in user of ctx, or "".
func GetUserID(ctx context.Context) string {
	if sc, ok := auth.SessionFromContext(ctx); ok {
		return sc.UserID
	}
	return ""
}

func authenticate(r *http.Request, a Authenticator) (*auth.SessionContext, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	return a.Authenticate(r.Context(), token)
}

func withSession(r *http.Request, sc *auth.SessionContext) *http.Request {
	noteUser(r.Context(), sc.UserID)
	return r.WithContext(auth.WithSession(r.Context(), sc))
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if isWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, nil
			}
		}
		return "", errNoToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadScheme
	}
	if token == "" {
		return "", errEmptyBearer
	}
	return token, nil
}

func failureDetail(err error) string {
	for _, f := range tokenFailures {
		if errors.Is(err, f.err) {
			return f.detail
		}
	}
	var he headerError
	if errors.As(err, &he) {
		return string(he)
	}
	return "authentication failed"
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusUnauthorized, detail)
}
