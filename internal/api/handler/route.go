package handler

import (
	"net/http"
	"strconv"

	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/routing"
)

// RouteHandler handles the routing overlay endpoint.
type RouteHandler struct {
	provider routing.Provider
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(provider routing.Provider) *RouteHandler {
	return &RouteHandler{provider: provider}
}

// GetRoute handles GET /v1/route?fromLat=&fromLng=&toLat=&toLng= - driving
// route polyline between two points.
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	query, fieldErrors := parseRouteQuery(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrors)
		return
	}
	if !validRequest(w, r, &query) {
		return
	}

	route, err := h.provider.Route(r.Context(),
		geo.Point{Lat: query.FromLat, Lng: query.FromLng},
		geo.Point{Lat: query.ToLat, Lng: query.ToLng},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, route)
}

func parseRouteQuery(r *http.Request) (models.RouteQuery, []models.FieldError) {
	var (
		q           models.RouteQuery
		fieldErrors []models.FieldError
	)
	values := r.URL.Query()
	for name, dst := range map[string]*float64{
		"fromLat": &q.FromLat,
		"fromLng": &q.FromLng,
		"toLat":   &q.ToLat,
		"toLng":   &q.ToLng,
	} {
		raw := values.Get(name)
		if raw == "" {
			fieldErrors = append(fieldErrors, models.FieldError{Field: name, Message: "is required", Code: "REQUIRED"})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: name, Message: "must be a number", Code: "NUMBER"})
			continue
		}
		*dst = v
	}
	return q, fieldErrors
}
