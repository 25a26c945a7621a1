package auth

import "context"

// SessionContext is the authenticated caller of a request. It is derived from
// the access token and threaded through request contexts.
type SessionContext struct {
	SessionID     string
	UserID        string
	EmailVerified bool
}

type sessionContextKey struct{}

// WithSession returns a copy of ctx carrying sc.
func WithSession(ctx context.Context, sc *SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sc)
}

// SessionFromContext returns the session carried by ctx, if any.
func SessionFromContext(ctx context.Context) (*SessionContext, bool) {
	sc, ok := ctx.Value(sessionContextKey{}).(*SessionContext)
	return sc, ok && sc != nil
}

// Gate decides which screen to show for a session; nil means signed out.
func Gate(sc *SessionContext) GateScreen {
	switch {
	case sc == nil:
		return GateSignIn
	case !sc.EmailVerified:
		return GateVerifyEmail
	default:
		return GateMap
	}
}
