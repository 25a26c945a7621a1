package auth

import (
	"context"
	"sync"
	"time"
)

// SessionRepository stores sessions.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// FindByID finds a session by id.
	FindByID(ctx context.Context, id string) (*Session, error)

	// FindByRefreshToken finds a session by its current refresh token.
	FindByRefreshToken(ctx context.Context, token string) (*Session, error)

	// RotateRefreshToken replaces oldToken with newToken. It fails with
	// ErrInvalidRefreshToken when oldToken is no longer the session's token.
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error

	// SetEmailVerified records the session's verification state.
	SetEmailVerified(ctx context.Context, id string, verified bool) error

	// Revoke marks a session as revoked.
	Revoke(ctx context.Context, id string) error
}

// InMemorySessionRepository is an in-memory implementation of SessionRepository.
// Used for local development and tests.
type InMemorySessionRepository struct {
	mu        sync.RWMutex
	sessions  map[string]*Session // keyed by session ID
	byRefresh map[string]string   // refresh token -> session ID
}

// NewInMemorySessionRepository creates a new in-memory session repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions:  make(map[string]*Session),
		byRefresh: make(map[string]string),
	}
}

// Create stores a new session.
func (r *InMemorySessionRepository) Create(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionCopy := *session
	r.sessions[session.ID] = &sessionCopy
	r.byRefresh[session.RefreshToken] = session.ID
	return nil
}

// FindByID finds a session by id.
func (r *InMemorySessionRepository) FindByID(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

// FindByRefreshToken finds a session by its current refresh token.
func (r *InMemorySessionRepository) FindByRefreshToken(_ context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRefresh[token]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	sessionCopy := *r.sessions[id]
	return &sessionCopy, nil
}

// RotateRefreshToken replaces the session's refresh token.
func (r *InMemorySessionRepository) RotateRefreshToken(_ context.Context, id, oldToken, newToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RefreshToken != oldToken || session.RevokedAt != nil {
		return ErrInvalidRefreshToken
	}
	delete(r.byRefresh, oldToken)
	session.RefreshToken = newToken
	session.ExpiresAt = expiresAt
	r.byRefresh[newToken] = id
	return nil
}

// SetEmailVerified records the session's verification state.
func (r *InMemorySessionRepository) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.EmailVerified = verified
	return nil
}

// Revoke marks a session as revoked. Revoking an unknown session is a no-op.
func (r *InMemorySessionRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	session.RevokedAt = &now
	delete(r.byRefresh, session.RefreshToken)
	return nil
}
