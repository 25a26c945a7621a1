package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new PostgreSQL profile repository.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves the profile of a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT user_id, username, full_name, date_of_birth, email, created_at
		FROM user_profiles
		WHERE user_id = $1
	`

	var p Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Username,
		&p.FullName,
		&p.DateOfBirth,
		&p.Email,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// Create stores a new profile.
func (r *PostgresRepository) Create(ctx context.Context, profile *Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, username, full_name, date_of_birth, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		profile.UserID,
		profile.Username,
		profile.FullName,
		profile.DateOfBirth,
		profile.Email,
		profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileExists
	}
	return nil
}

// Delete removes a profile.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
