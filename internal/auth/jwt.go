package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// A session is carried by two tokens. The access token is a short-lived
// HS256 JWT sent as a Bearer token, or as the access_token query parameter
// when a WebSocket is opened. The refresh token is opaque and rotates on
// every use. A signed-out session is rejected on the next request even if
// its access token has not expired yet.
const (
	AccessTokenExpiry  = time.Hour
	RefreshTokenExpiry = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// AccessClaims are the claims of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims

	SessionID     string `json:"sid"`
	UserID        string `json:"uid"`
	EmailVerified bool   `json:"ev"`
}

// SessionContext returns the session the token was issued for.
func (c *AccessClaims) SessionContext() *SessionContext {
	return &SessionContext{SessionID: c.SessionID, UserID: c.UserID, EmailVerified: c.EmailVerified}
}

// TokenConfig configures a TokenSigner.
type TokenConfig struct {
	SigningKey string
	Issuer     string
	Audience   string

	// TTL defaults to AccessTokenExpiry.
	TTL time.Duration
}

// TokenSigner issues and verifies access tokens.
type TokenSigner struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenSigner creates a TokenSigner.
func NewTokenSigner(cfg TokenConfig) *TokenSigner {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = AccessTokenExpiry
	}
	return &TokenSigner{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns how long issued tokens are valid.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Sign issues an access token for session.
func (s *TokenSigner) Sign(session *Session) (string, time.Time, error) {
	issued := s.now()
	expires := issued.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   session.UserID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		SessionID:     session.ID,
		UserID:        session.UserID,
		EmailVerified: session.EmailVerified,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the token's signature, issuer, audience and expiry.
func (s *TokenSigner) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	case claims.SessionID == "" || claims.UserID == "":
		return nil, fmt.Errorf("%w: missing session claims", ErrInvalidAccessToken)
	}
	return claims, nil
}

// NewRefreshToken returns a random URL-safe refresh token.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
