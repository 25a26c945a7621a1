// Package auth provides sign-up, sign-in and session management for the
// explorer. Accounts live with an external identity provider; the explorer
// keeps its own sessions and issues its own access tokens.
package auth

import "time"

// Identity is an account as reported by the identity provider.
type Identity struct {
	UserID        string
	Email         string
	DisplayName   string
	EmailVerified bool

	// Provider credentials. IDToken is short-lived; RefreshToken lets the
	// provider client obtain a fresh one.
	IDToken      string
	RefreshToken string
}

// Session is a signed-in browser session.
type Session struct {
	ID            string
	UserID        string
	Email         string
	DisplayName   string
	EmailVerified bool

	// ProviderRefreshToken is the identity provider's refresh token, used to
	// re-read verification state and resend verification email.
	ProviderRefreshToken string

	// RefreshToken is the explorer's opaque refresh token. It rotates on use.
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

// Active reports whether the session can still be used at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SessionUser is the user summary returned with tokens.
type SessionUser struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// SignUpRequest is the body of POST /v1/auth/sign-up.
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Username    string `json:"username" validate:"required,max=64"`
	FullName    string `json:"fullName" validate:"required,max=128"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,max=32"`
}

// SignInRequest is the body of POST /v1/auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GoogleSignInRequest is the body of POST /v1/auth/google.
type GoogleSignInRequest struct {
	// IDToken is the Google ID token obtained by the browser.
	IDToken string `json:"idToken" validate:"required"`
}

// RefreshTokenRequest represents the request to refresh an access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	RefreshToken string `json:"refreshToken"`

	User *SessionUser `json:"user"`
}

// GateScreen is the screen a browser should show for its session state.
type GateScreen string

const (
	GateSignIn      GateScreen = "sign-in"
	GateVerifyEmail GateScreen = "verify-email"
	GateMap         GateScreen = "map"
)

// SessionEventType names a session change.
type SessionEventType string

const (
	EventSignedIn  SessionEventType = "signed_in"
	EventSignedOut SessionEventType = "signed_out"
	EventVerified  SessionEventType = "verified"
)

// SessionEvent is published on the user's session subject.
type SessionEvent struct {
	Type          SessionEventType `json:"type"`
	UserID        string           `json:"userId"`
	SessionID     string           `json:"sessionId"`
	EmailVerified bool             `json:"emailVerified"`
	At            time.Time        `json:"at"`
}
