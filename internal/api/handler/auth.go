package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/failure"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *auth.Service
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// SignUp handles POST /v1/auth/sign-up - create an account.
// The returned session is unverified until the email link is followed.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.SignUp(r.Context(), &req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, tokenResp)
}

// SignIn handles POST /v1/auth/sign-in - email/password sign-in.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.SignIn(r.Context(), &req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// SignInWithGoogle handles POST /v1/auth/google - federated sign-in.
func (h *AuthHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req auth.GoogleSignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.SignInWithGoogle(r.Context(), &req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// RefreshToken handles POST /v1/auth/refresh - rotate the refresh token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// Logout handles POST /v1/auth/logout - revoke the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.authService.SignOut(r.Context(), sc); err != nil {
		h.logger.Error().Err(err).Str("session_id", sc.SessionID).Msg("sign-out failed")
		response.InternalError(w, r, auth.MessageSignOutFailed)
		return
	}

	response.NoContent(w, r)
}

// ResendVerification handles POST /v1/auth/verification-email.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.authService.ResendVerification(r.Context(), sc); err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// RefreshVerification handles POST /v1/auth/verification-refresh - re-read
// the verification state and return tokens that carry it.
func (h *AuthHandler) RefreshVerification(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	tokenResp, err := h.authService.RefreshVerification(r.Context(), sc)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// writeAuthError renders auth failures with their catalog message.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		response.Forbidden(w, r, auth.MessageEmailNotVerified)
		return
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		response.Unauthorized(w, r, "invalid refresh token")
		return
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		response.Unauthorized(w, r, "refresh token has expired")
		return
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrSessionRevoked):
		response.Unauthorized(w, r, "session has been signed out")
		return
	case errors.Is(err, auth.ErrVerificationEmailFailed):
		h.logger.Warn().Err(err).Msg("verification email failed")
		response.BadGateway(w, r, auth.MessageVerificationFailed)
		return
	}

	message := auth.Message(err)
	switch failure.KindOf(err) {
	case failure.KindAuth:
		switch auth.Code(err) {
		case auth.CodeEmailAlreadyInUse:
			response.Conflict(w, r, message)
		case auth.CodeInvalidEmail, auth.CodeWeakPassword:
			response.BadRequest(w, r, message, nil)
		case auth.CodeTooManyRequests:
			response.TooManyRequests(w, r, message)
		case auth.CodeOperationNotAllowed, auth.CodeUserDisabled:
			response.Forbidden(w, r, message)
		default:
			response.Unauthorized(w, r, message)
		}
	case failure.KindNetworkUnavailable:
		response.ServiceUnavailable(w, r, message)
	case failure.KindTimeout:
		response.GatewayTimeout(w, r, message)
	default:
		h.logger.Error().Err(err).Msg("authentication failed")
		response.InternalError(w, r, message)
	}
}
