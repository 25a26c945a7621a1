// Package overpass queries OpenStreetMap features through the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/place"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

const (
	// ProviderName identifies this POI provider.
	ProviderName = "overpass"

	// DefaultEndpoint is the Overpass interpreter used by the place backend.
	DefaultEndpoint = "https://overpass.kumi.systems/api/interpreter"

	// DefaultTimeout matches the [timeout:30] server-side budget.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	Endpoint   string
	UserAgent  string
	HTTPClient *resilience.Client
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is an Overpass API client.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

var _ place.AmenitySource = (*Client)(nil)

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.SingleShotClientConfig(ProviderName)
		clientCfg.Timeout = DefaultTimeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}
	return &Client{
		endpoint:   endpoint,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Query builds the Overpass QL for one amenity type.
func Query(center geo.Point, radiusMeters int, amenity string) string {
	return fmt.Sprintf(`[out:json][timeout:30];nwr(around:%d,%f,%f)["amenity"="%s"];out center;`,
		radiusMeters, center.Lat, center.Lng, amenity)
}

// Amenities lists nodes, ways and relations tagged amenity=<amenity> around center.
func (c *Client) Amenities(ctx context.Context, center geo.Point, radiusMeters int, amenity string) ([]place.Element, error) {
	body := "data=" + Query(center, radiusMeters, amenity)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.FromStatus(ProviderName, resp.StatusCode, "")
	}

	var out interpreterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failure.Server(ProviderName, "DECODE_ERROR", fmt.Sprintf("decoding response: %v", err))
	}

	elements := make([]place.Element, 0, len(out.Elements))
	for _, el := range out.Elements {
		elements = append(elements, place.Element{Tags: el.Tags, Point: el.point()})
	}

	c.logger.Debug().Str("amenity", amenity).Int("elements", len(elements)).Msg("overpass query complete")
	return elements, nil
}

type interpreterResponse struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *latLon           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// point prefers the way/relation center over the node coordinate.
func (e element) point() *geo.Point {
	if e.Center != nil {
		return &geo.Point{Lat: e.Center.Lat, Lng: e.Center.Lon}
	}
	if e.Lat == nil || e.Lon == nil {
		return nil
	}
	return &geo.Point{Lat: *e.Lat, Lng: *e.Lon}
}
