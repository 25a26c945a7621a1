package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/user"
)

// ErrVerificationEmailFailed wraps provider failures when resending the
// verification email.
var ErrVerificationEmailFailed = errors.New("sending verification email failed")

// ProfileProvisioner writes profile documents for new accounts.
type ProfileProvisioner interface {
	CreateProfile(ctx context.Context, userID string, p user.NewProfile) error
	EnsureProfile(ctx context.Context, userID, email, displayName string) error
}

// DirectProvisioner writes profiles synchronously through the profile service.
type DirectProvisioner struct {
	Profiles *user.Service
}

// CreateProfile implements ProfileProvisioner.
func (d DirectProvisioner) CreateProfile(ctx context.Context, userID string, p user.NewProfile) error {
	_, err := d.Profiles.CreateProfile(ctx, userID, p)
	return err
}

// EnsureProfile implements ProfileProvisioner.
func (d DirectProvisioner) EnsureProfile(ctx context.Context, userID, email, displayName string) error {
	_, err := d.Profiles.EnsureProfile(ctx, userID, email, displayName)
	return err
}

// Service provides authentication operations.
type Service struct {
	identity IdentityProvider
	tokens   *TokenSigner
	sessions SessionRepository
	profiles ProfileProvisioner
	events   events.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	Identity IdentityProvider
	Tokens   *TokenSigner
	Sessions SessionRepository
	Profiles ProfileProvisioner
	// Events is optional; without it session changes are not pushed.
	Events events.Publisher
	Logger zerolog.Logger
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		identity: cfg.Identity,
		tokens:   cfg.Tokens,
		sessions: cfg.Sessions,
		profiles: cfg.Profiles,
		events:   cfg.Events,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// SignUp creates an account, writes its profile, sends the verification email
// and returns an unverified session.
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*TokenResponse, error) {
	id, err := s.identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", id.UserID).Msg("account created")

	if err := s.identity.SetDisplayName(ctx, id, req.FullName); err != nil {
		return nil, fmt.Errorf("setting display name: %w", err)
	}
	id.DisplayName = req.FullName

	err = s.profiles.CreateProfile(ctx, id.UserID, user.NewProfile{
		Username:    req.Username,
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	if err := s.identity.SendVerificationEmail(ctx, id); err != nil {
		return nil, fmt.Errorf("sending verification email: %w", err)
	}

	return s.startSession(ctx, id)
}

// SignIn signs in with email and password. Unverified accounts are refused
// with ErrEmailNotVerified and no session is created.
func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*TokenResponse, error) {
	id, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !id.EmailVerified {
		s.logger.Info().Str("user_id", id.UserID).Msg("sign-in refused: email not verified")
		return nil, ErrEmailNotVerified
	}
	return s.startSession(ctx, id)
}

// SignInWithGoogle signs in with a Google ID token and provisions a profile
// on first sign-in.
func (s *Service) SignInWithGoogle(ctx context.Context, req *GoogleSignInRequest) (*TokenResponse, error) {
	id, err := s.identity.SignInWithGoogle(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.EnsureProfile(ctx, id.UserID, id.Email, id.DisplayName); err != nil {
		return nil, fmt.Errorf("provisioning profile: %w", err)
	}
	return s.startSession(ctx, id)
}

// Refresh rotates a refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	session, err := s.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if session.RevokedAt != nil {
		return nil, ErrInvalidRefreshToken
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	newToken, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(RefreshTokenExpiry)
	if err := s.sessions.RotateRefreshToken(ctx, session.ID, refreshToken, newToken, expiresAt); err != nil {
		return nil, err
	}
	session.RefreshToken = newToken
	session.ExpiresAt = expiresAt

	return s.issueTokens(session)
}

// Authenticate validates an access token and returns its live session.
// Verification state comes from the session store, not the token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*SessionContext, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if session.RevokedAt != nil || session.UserID != claims.UserID {
		return nil, ErrSessionRevoked
	}

	return &SessionContext{
		SessionID:     session.ID,
		UserID:        session.UserID,
		EmailVerified: session.EmailVerified,
	}, nil
}

// CurrentUser returns the account summary of a session.
func (s *Service) CurrentUser(ctx context.Context, sc *SessionContext) (*SessionUser, error) {
	session, err := s.sessions.FindByID(ctx, sc.SessionID)
	if err != nil {
		return nil, err
	}
	return sessionUser(session), nil
}

// ResendVerification sends the verification email again.
func (s *Service) ResendVerification(ctx context.Context, sc *SessionContext) error {
	session, err := s.sessions.FindByID(ctx, sc.SessionID)
	if err != nil {
		return err
	}
	if err := s.identity.SendVerificationEmail(ctx, providerIdentity(session)); err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationEmailFailed, err)
	}
	s.logger.Info().Str("user_id", session.UserID).Msg("verification email sent")
	return nil
}

// RefreshVerification re-reads the account's verification state from the
// identity provider and returns tokens reflecting it.
func (s *Service) RefreshVerification(ctx context.Context, sc *SessionContext) (*TokenResponse, error) {
	session, err := s.sessions.FindByID(ctx, sc.SessionID)
	if err != nil {
		return nil, err
	}

	id, err := s.identity.Lookup(ctx, providerIdentity(session))
	if err != nil {
		return nil, err
	}
	if id.EmailVerified && !session.EmailVerified {
		if err := s.sessions.SetEmailVerified(ctx, session.ID, true); err != nil {
			return nil, err
		}
		session.EmailVerified = true
		s.publish(ctx, EventVerified, session)
	}

	return s.issueTokens(session)
}

// SignOut revokes the session.
func (s *Service) SignOut(ctx context.Context, sc *SessionContext) error {
	session, err := s.sessions.FindByID(ctx, sc.SessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return err
	}
	s.publish(ctx, EventSignedOut, session)
	return nil
}

func (s *Service) startSession(ctx context.Context, id *Identity) (*TokenResponse, error) {
	refreshToken, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &Session{
		ID:                   uuid.NewString(),
		UserID:               id.UserID,
		Email:                id.Email,
		DisplayName:          id.DisplayName,
		EmailVerified:        id.EmailVerified,
		ProviderRefreshToken: id.RefreshToken,
		RefreshToken:         refreshToken,
		ExpiresAt:            now.Add(RefreshTokenExpiry),
		CreatedAt:            now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	s.publish(ctx, EventSignedIn, session)
	return s.issueTokens(session)
}

func (s *Service) issueTokens(session *Session) (*TokenResponse, error) {
	accessToken, _, err := s.tokens.Sign(session)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
		RefreshToken: session.RefreshToken,
		User:         sessionUser(session),
	}, nil
}

func (s *Service) publish(ctx context.Context, typ SessionEventType, session *Session) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(SessionEvent{
		Type:          typ,
		UserID:        session.UserID,
		SessionID:     session.ID,
		EmailVerified: session.EmailVerified,
		At:            s.now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding session event")
		return
	}
	if err := s.events.Publish(ctx, events.SessionSubject(session.UserID), data); err != nil {
		s.logger.Warn().Err(err).Str("event", string(typ)).Msg("publishing session event")
	}
}

func sessionUser(session *Session) *SessionUser {
	return &SessionUser{
		UserID:        session.UserID,
		Email:         session.Email,
		DisplayName:   session.DisplayName,
		EmailVerified: session.EmailVerified,
	}
}

func providerIdentity(session *Session) *Identity {
	return &Identity{
		UserID:       session.UserID,
		Email:        session.Email,
		RefreshToken: session.ProviderRefreshToken,
	}
}
