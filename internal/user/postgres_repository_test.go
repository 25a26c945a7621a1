package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileColumns = []string{"user_id", "username", "full_name", "date_of_birth", "email", "created_at"}

func TestPostgresRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM user_profiles").
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows(profileColumns).
			AddRow("uid-1", "lan", "Nguyen Thi Lan", "2000-01-02", "lan@example.com", created))

	repo := NewPostgresRepository(mock)
	p, err := repo.Get(context.Background(), "uid-1")
	require.NoError(t, err)

	assert.Equal(t, "lan", p.Username)
	assert.Equal(t, "Nguyen Thi Lan", p.FullName)
	assert.Equal(t, "2000-01-02", p.DateOfBirth)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_profiles").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresRepository(mock).Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := &Profile{UserID: "uid-1", Username: "lan", Email: "lan@example.com", CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs(p.UserID, p.Username, p.FullName, p.DateOfBirth, p.Email, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs(p.UserID, p.Username, p.FullName, p.DateOfBirth, p.Email, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Create(context.Background(), p))
	assert.True(t, errors.Is(repo.Create(context.Background(), p), ErrProfileExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM user_profiles").
		WithArgs("uid-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, NewPostgresRepository(mock).Delete(context.Background(), "uid-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
