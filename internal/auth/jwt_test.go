package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/auth"
)

func newSigner(mutate func(*auth.TokenConfig)) *auth.TokenSigner {
	cfg := auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.vietnam-explorer.app",
		Audience:   "vietnam-explorer-api",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return auth.NewTokenSigner(cfg)
}

var testSession = &auth.Session{
	ID:            "ses_123",
	UserID:        "uid_test123",
	Email:         "lan@example.com",
	EmailVerified: true,
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := newSigner(nil)

	token, expiresAt, err := signer.Sign(testSession)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenExpiry), expiresAt, 5*time.Second)
	assert.Equal(t, auth.AccessTokenExpiry, signer.TTL())

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uid_test123", claims.Subject)
	assert.Equal(t, "https://api.vietnam-explorer.app", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, &auth.SessionContext{SessionID: "ses_123", UserID: "uid_test123", EmailVerified: true}, claims.SessionContext())
}

func TestTokenSigner_UniqueTokenIDs(t *testing.T) {
	signer := newSigner(nil)

	first, _, err := signer.Sign(testSession)
	require.NoError(t, err)
	second, _, err := signer.Sign(testSession)
	require.NoError(t, err)

	a, err := signer.Verify(first)
	require.NoError(t, err)
	b, err := signer.Verify(second)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := newSigner(func(c *auth.TokenConfig) { c.TTL = time.Nanosecond })

	token, _, err := signer.Sign(testSession)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestTokenSigner_Rejects(t *testing.T) {
	token, _, err := newSigner(nil).Sign(testSession)
	require.NoError(t, err)

	tests := []struct {
		name   string
		signer *auth.TokenSigner
		token  string
	}{
		{name: "empty", signer: newSigner(nil), token: ""},
		{name: "malformed", signer: newSigner(nil), token: "not.a.valid.jwt"},
		{name: "garbage segments", signer: newSigner(nil), token: "xxx.yyy.zzz"},
		{name: "other key", signer: newSigner(func(c *auth.TokenConfig) { c.SigningKey = "another-key" }), token: token},
		{name: "other issuer", signer: newSigner(func(c *auth.TokenConfig) { c.Issuer = "https://evil.example" }), token: token},
		{name: "other audience", signer: newSigner(func(c *auth.TokenConfig) { c.Audience = "place-backend" }), token: token},
		{name: "truncated signature", signer: newSigner(nil), token: token[:strings.LastIndex(token, ".")+4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.Verify(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestTokenSigner_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	claims := auth.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://api.vietnam-explorer.app",
			Audience:  jwt.ClaimStrings{"vietnam-explorer-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		SessionID: "ses_123",
		UserID:    "uid_test123",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newSigner(nil).Verify(unsigned)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestTokenSigner_RequiresSessionClaims(t *testing.T) {
	token, _, err := newSigner(nil).Sign(&auth.Session{UserID: "uid_test123"})
	require.NoError(t, err)

	_, err = newSigner(nil).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestNewRefreshToken(t *testing.T) {
	first, err := auth.NewRefreshToken()
	require.NoError(t, err)
	second, err := auth.NewRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^[A-Za-z0-9_-]{43}$`, first)
}
