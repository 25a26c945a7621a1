package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSessionRepository is a PostgreSQL implementation of SessionRepository.
type PostgresSessionRepository struct {
	db DBTX
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository.
func NewPostgresSessionRepository(db DBTX) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

const sessionColumns = `id, user_id, email, display_name, email_verified, provider_refresh_token,
			refresh_token, expires_at, created_at, revoked_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Email,
		&s.DisplayName,
		&s.EmailVerified,
		&s.ProviderRefreshToken,
		&s.RefreshToken,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create stores a new session.
func (r *PostgresSessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Email,
		session.DisplayName,
		session.EmailVerified,
		session.ProviderRefreshToken,
		session.RefreshToken,
		session.ExpiresAt,
		session.CreatedAt,
		session.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByID finds a session by id.
func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// FindByRefreshToken finds a session by its current refresh token.
func (r *PostgresSessionRepository) FindByRefreshToken(ctx context.Context, token string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token = $1`

	s, err := scanSession(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// RotateRefreshToken replaces the session's refresh token.
func (r *PostgresSessionRepository) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET refresh_token = $3, expires_at = $4
		WHERE id = $1 AND refresh_token = $2 AND revoked_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, oldToken, newToken, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidRefreshToken
	}
	return nil
}

// SetEmailVerified records the session's verification state.
func (r *PostgresSessionRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE sessions SET email_verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Revoke marks a session as revoked.
func (r *PostgresSessionRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
