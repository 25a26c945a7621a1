package user

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	s := NewService(NewInMemoryRepository(), zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600)) }
	return s
}

func TestService_GetProfile_AbsentIsNotAnError(t *testing.T) {
	s := newTestService()

	p, err := s.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestService_CreateProfile(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "uid-1", NewProfile{
		Username:    "minh",
		FullName:    "Tran Van Minh",
		DateOfBirth: "1999-12-31",
		Email:       "minh@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 3, 0, 0, 0, time.UTC), p.CreatedAt)

	got, err := s.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.CreateProfile(ctx, "uid-1", NewProfile{Username: "again"})
	assert.ErrorIs(t, err, ErrProfileExists)
}

func TestService_EnsureProfile(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	p, err := s.EnsureProfile(ctx, "g-1", "hoa.pham@gmail.com", "Pham Hoa")
	require.NoError(t, err)
	assert.Equal(t, "hoa.pham", p.Username)
	assert.Equal(t, "Pham Hoa", p.FullName)
	assert.Empty(t, p.DateOfBirth)

	// A second sign-in keeps the first profile.
	again, err := s.EnsureProfile(ctx, "g-1", "other@gmail.com", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "an", UsernameFromEmail("an@example.com"))
	assert.Equal(t, DefaultUsername, UsernameFromEmail(""))
	assert.Equal(t, DefaultUsername, UsernameFromEmail("@example.com"))
}
