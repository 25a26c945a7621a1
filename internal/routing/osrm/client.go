// Package osrm draws routes with the OSRM HTTP route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/routing"
	"github.com/vietnamexplorer/explorer/pkg/polyline"
)

const (
	ProviderName   = "osrm"
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "driving"
)

// HTTPDoer sends one request. *resilience.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	// BaseURL defaults to the public demo server, which only serves driving.
	BaseURL string

	// Profile is the OSRM profile segment, e.g. "driving" or "foot".
	Profile string

	// HTTPClient defaults to a single-shot client registered in Registry.
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client implements routing.Provider.
type Client struct {
	routeURL string
	http     HTTPDoer
	log      zerolog.Logger
}

var _ routing.Provider = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	hc := cfg.HTTPClient
	if hc == nil {
		rc := resilience.SingleShotClientConfig(ProviderName)
		rc.Registry = cfg.Registry
		hc = resilience.NewClient(rc)
	}

	return &Client{
		routeURL: base + "/route/v1/" + profile + "/",
		http:     hc,
		log:      cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

func (c *Client) Name() string { return ProviderName }

// Route returns the best route from origin to destination with its full
// geometry decoded.
func (c *Client) Route(ctx context.Context, origin, destination geo.Point) (*routing.Route, error) {
	if origin.Validate() != nil {
		return nil, failure.Validation(ProviderName, "invalid origin coordinates")
	}
	if destination.Validate() != nil {
		return nil, failure.Validation(ProviderName, "invalid destination coordinates")
	}

	// Coordinates are lng,lat pairs separated by ';'.
	target := fmt.Sprintf("%s%.6f,%.6f;%.6f,%.6f?overview=full&geometries=polyline",
		c.routeURL, origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building route request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("route lookup failed")
		return nil, failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	// OSRM reports failures in the body as well as the status.
	var out routeResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		return nil, out.asError(resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, failure.Server(ProviderName, "DECODE_ERROR", "malformed route payload: "+decodeErr.Error())
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, failure.NotFound(ProviderName, "no route found between the given points")
	}

	route, err := out.Routes[0].decode()
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Float64("distance_m", route.DistanceMeters).
		Int("points", len(route.Geometry)).
		Msg("route fetched")
	return route, nil
}

type routeResult struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

func (r *routeResult) asError(status int) error {
	switch r.Code {
	case "NoRoute", "NoSegment":
		return failure.NotFound(ProviderName, r.Message)
	case "InvalidQuery", "InvalidValue", "InvalidUrl", "InvalidOptions":
		return failure.Validation(ProviderName, r.Message)
	}
	return failure.FromStatus(ProviderName, status, r.Message)
}

func (o osrmRoute) decode() (*routing.Route, error) {
	coords, err := polyline.Decode(o.Geometry)
	if err != nil {
		return nil, failure.Server(ProviderName, "BAD_GEOMETRY", err.Error())
	}
	points := make([]geo.Point, len(coords))
	for i, c := range coords {
		points[i] = geo.Point{Lat: c.Lat, Lng: c.Lng}
	}
	return &routing.Route{
		Polyline:        o.Geometry,
		Geometry:        points,
		DistanceMeters:  o.Distance,
		DurationSeconds: o.Duration,
	}, nil
}
