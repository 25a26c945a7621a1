package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/user"
)

// SessionHandler handles the session gate, session events and the account summary.
type SessionHandler struct {
	authService *auth.Service
	userService *user.Service
	streamer    *EventStreamer
	logger      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(authService *auth.Service, userService *user.Service, streamer *EventStreamer, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		authService: authService,
		userService: userService,
		streamer:    streamer,
		logger:      logger,
	}
}

// Gate handles GET /v1/session/gate - which screen the browser should show.
// Runs behind optional authentication.
func (h *SessionHandler) Gate(w http.ResponseWriter, r *http.Request) {
	sc, _ := auth.SessionFromContext(r.Context())
	response.JSON(w, r, http.StatusOK, models.Gate{Screen: auth.Gate(sc)})
}

// Events handles GET /v1/session/events - WebSocket of session changes
// (signed_in, signed_out, verified) for the signed-in user.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}
	h.streamer.Stream(w, r, events.SessionSubject(sc.UserID), nil)
}

// GetMe handles GET /v1/me - account summary and profile.
func (h *SessionHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	account, err := h.authService.CurrentUser(r.Context(), sc)
	if err != nil {
		response.Unauthorized(w, r, "session has been signed out")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), sc.UserID)
	if err != nil {
		// The account summary is still useful without the profile.
		h.logger.Warn().Err(err).Str("user_id", sc.UserID).Msg("fetching profile failed")
		profile = nil
	}

	response.JSON(w, r, http.StatusOK, models.Me{User: account, Profile: profile})
}
