package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/explore"
	"github.com/vietnamexplorer/explorer/internal/geo"
)

// ScreenHandler handles the map screen endpoints. Every mutating endpoint
// answers with the screen snapshot as of its completion; annotation fetches
// started by it arrive later on the event stream.
type ScreenHandler struct {
	exploreService *explore.Service
	streamer       *EventStreamer
	logger         zerolog.Logger
}

// NewScreenHandler creates a new ScreenHandler.
func NewScreenHandler(exploreService *explore.Service, streamer *EventStreamer, logger zerolog.Logger) *ScreenHandler {
	return &ScreenHandler{
		exploreService: exploreService,
		streamer:       streamer,
		logger:         logger,
	}
}

// Mount handles POST /v1/screens - mount a map screen.
func (h *ScreenHandler) Mount(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	screen, err := h.exploreService.Mount(r.Context(), sc.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/screens/"+screen.ID(), screen.Snapshot())
}

// Get handles GET /v1/screens/{screenId}.
func (h *ScreenHandler) Get(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// Unmount handles DELETE /v1/screens/{screenId} - navigate away.
func (h *ScreenHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.exploreService.Unmount(chi.URLParam(r, "screenId"), sc.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// Search handles POST /v1/screens/{screenId}/search - manual place search.
// Search failures are part of the returned state, not an error response.
func (h *ScreenHandler) Search(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	var input models.SearchInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := screen.SubmitSearch(r.Context(), input.PlaceName); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// Chat handles POST /v1/screens/{screenId}/chat - send a chat message.
func (h *ScreenHandler) Chat(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	var input models.ChatInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := screen.SubmitChatMessage(r.Context(), input.Message); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// SetDeviceLocation handles PUT /v1/screens/{screenId}/device-location.
func (h *ScreenHandler) SetDeviceLocation(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	var input models.DeviceLocationInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := screen.SetDeviceLocation(geo.Point{Lat: *input.Lat, Lng: *input.Lng}); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// ClearDeviceLocation handles DELETE /v1/screens/{screenId}/device-location.
func (h *ScreenHandler) ClearDeviceLocation(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	if err := screen.ClearDeviceLocation(); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// OpenPopup handles POST /v1/screens/{screenId}/popups.
func (h *ScreenHandler) OpenPopup(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	var input models.PopupInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := screen.OpenPopup(*input.Index); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// ClosePopup handles DELETE /v1/screens/{screenId}/popups/{index}.
func (h *ScreenHandler) ClosePopup(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		response.BadRequest(w, r, "index must be a non-negative integer", []models.FieldError{
			{Field: "index", Message: "must be a non-negative integer", Code: "GTE"},
		})
		return
	}

	if err := screen.ClosePopup(index); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, screen.Snapshot())
}

// Events handles GET /v1/screens/{screenId}/events - WebSocket of screen
// snapshots. The current snapshot is sent first.
func (h *ScreenHandler) Events(w http.ResponseWriter, r *http.Request) {
	screen, ok := h.screen(w, r)
	if !ok {
		return
	}

	h.streamer.Stream(w, r, events.ScreenSubject(screen.ID()), func() ([]byte, error) {
		return json.Marshal(screen.Snapshot())
	})
}

// screen resolves the {screenId} path parameter for the caller, writing a
// problem response when it cannot.
func (h *ScreenHandler) screen(w http.ResponseWriter, r *http.Request) (*explore.Screen, bool) {
	sc, ok := auth.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return nil, false
	}

	screen, err := h.exploreService.Screen(chi.URLParam(r, "screenId"), sc.UserID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return screen, true
}
