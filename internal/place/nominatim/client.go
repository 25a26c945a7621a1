// Package nominatim geocodes place names with the OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/place"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout matches the slow tail of the public instance.
	DefaultTimeout = 60 * time.Second
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	BaseURL string

	// UserAgent is required by the Nominatim usage policy.
	UserAgent string

	// Interval between requests. Default: one second, the public usage policy.
	Interval time.Duration

	HTTPClient *resilience.Client
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is a Nominatim API client.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	httpClient *resilience.Client
	logger     zerolog.Logger
}

var _ place.Geocoder = (*Client)(nil)

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.SingleShotClientConfig(ProviderName)
		clientCfg.Timeout = DefaultTimeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode returns the first match for "<query>, Vietnam".
func (c *Client) Geocode(ctx context.Context, query string) (geo.Point, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Point{}, failure.FromTransport(ProviderName, err)
	}

	q := url.Values{}
	q.Set("q", query+", Vietnam")
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return geo.Point{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Point{}, failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, failure.FromStatus(ProviderName, resp.StatusCode, "")
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Point{}, failure.Server(ProviderName, "DECODE_ERROR", fmt.Sprintf("decoding response: %v", err))
	}
	if len(results) == 0 {
		return geo.Point{}, failure.NotFound(ProviderName, place.MessageNoGeocodeResult)
	}

	item := results[0]
	lat, errLat := strconv.ParseFloat(item.Lat, 64)
	lng, errLng := strconv.ParseFloat(item.Lon, 64)
	if errLat != nil || errLng != nil {
		return geo.Point{}, failure.Server(ProviderName, "BAD_COORDINATES", "unparseable coordinates in result")
	}

	c.logger.Debug().
		Str("query", query).
		Str("display_name", item.DisplayName).
		Float64("lat", lat).
		Float64("lng", lng).
		Msg("nominatim match")

	return geo.Point{Lat: lat, Lng: lng}, nil
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
