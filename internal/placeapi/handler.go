// Package placeapi serves the place backend: geocoding, points of interest
// and the map assistant chat. Errors are JSON objects with a single "detail"
// field.
package placeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/place"
)

// Error details for upstream failures.
const (
	DetailUnavailable = "Unable to connect to the server. Please check your internet connection."
	DetailTimeout     = "Request timeout. Please try again."
)

// Places geocodes names and lists points of interest.
type Places interface {
	Geocode(ctx context.Context, placeName string) (*geo.Location, error)
	FindPointsOfInterest(ctx context.Context, q place.POIQuery) ([]geo.PointOfInterest, error)
}

// Assistant answers one chat turn.
type Assistant interface {
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.Reply, error)
}

// GeocodeRequest is the body of POST /place/geocode.
type GeocodeRequest struct {
	PlaceName string `json:"place_name" validate:"required,max=200"`
}

// POIRequest is the body of POST /place/poi.
type POIRequest struct {
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	RadiusM int      `json:"radius_m" validate:"gte=0,lte=50000"`
	Query   string   `json:"query" validate:"max=200"`
}

// Handler serves the place backend endpoints.
type Handler struct {
	places    Places
	assistant Assistant
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(places Places, asst Assistant, logger zerolog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)

	return &Handler{
		places:    places,
		assistant: asst,
		validate:  v,
		logger:    logger,
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Geocode handles POST /place/geocode.
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	var req GeocodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	loc, err := h.places.Geocode(r.Context(), req.PlaceName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// PointsOfInterest handles POST /place/poi.
func (h *Handler) PointsOfInterest(w http.ResponseWriter, r *http.Request) {
	var req POIRequest
	if !h.decode(w, r, &req) {
		return
	}

	pois, err := h.places.FindPointsOfInterest(r.Context(), place.POIQuery{
		Center:       geo.Point{Lat: *req.Lat, Lng: *req.Lng},
		RadiusMeters: req.RadiusM,
		Query:        strings.TrimSpace(req.Query),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pois)
}

// Chat handles POST /ai/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req assistant.ChatRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.assistant.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeDetail(w, http.StatusUnprocessableEntity, fe.Field()+": failed "+fe.Tag()+" validation")
			return false
		}
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// writeError maps a classified error onto the backend's status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.logger.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()

	switch failure.KindOf(err) {
	case failure.KindValidation:
		writeDetail(w, http.StatusUnprocessableEntity, failure.Detail(err))
	case failure.KindNotFound:
		writeDetail(w, http.StatusNotFound, failure.Detail(err))
	case failure.KindNetworkUnavailable:
		log.Warn().Err(err).Msg("upstream unavailable")
		writeDetail(w, http.StatusServiceUnavailable, DetailUnavailable)
	case failure.KindTimeout:
		log.Warn().Err(err).Msg("upstream timeout")
		writeDetail(w, http.StatusGatewayTimeout, DetailTimeout)
	default:
		log.Error().Err(err).Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
