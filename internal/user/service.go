package user

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Service provides profile operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new profile service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// GetProfile returns the user's profile, or nil when none has been written.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProfile writes the profile document for a new account.
func (s *Service) CreateProfile(ctx context.Context, userID string, in NewProfile) (*Profile, error) {
	p := &Profile{
		UserID:      userID,
		Username:    in.Username,
		FullName:    in.FullName,
		DateOfBirth: in.DateOfBirth,
		Email:       in.Email,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Msg("profile created")
	return p, nil
}

// EnsureProfile returns the existing profile or provisions one for a
// federated account: username from the email prefix, empty date of birth.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, displayName string) (*Profile, error) {
	existing, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	p, err := s.CreateProfile(ctx, userID, NewProfile{
		Username: UsernameFromEmail(email),
		FullName: displayName,
		Email:    email,
	})
	if errors.Is(err, ErrProfileExists) {
		// Provisioned concurrently by another sign-in.
		return s.repo.Get(ctx, userID)
	}
	return p, err
}

// DeleteProfile removes the user's profile.
func (s *Service) DeleteProfile(ctx context.Context, userID string) error {
	return s.repo.Delete(ctx, userID)
}
