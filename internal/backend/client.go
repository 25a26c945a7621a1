// Package backend calls the place backend's HTTP API: geocoding, POI lookup and
// the chat assistant.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

const (
	// ProviderName identifies the place backend in the provider registry.
	ProviderName = "placeapi"

	// DefaultBaseURL is the place backend on a developer machine.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// MessageNotFound is the geocode 404 detail.
	MessageNotFound = "Không tìm thấy kết quả"
)

// ClientConfig holds configuration for the place backend client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *resilience.Client
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is a typed client for the place backend.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a place backend client. Requests are never retried.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.SingleShotClientConfig(ProviderName)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}
}

// Geocode resolves a place name in Vietnam.
func (c *Client) Geocode(ctx context.Context, placeName string) (*geo.Location, error) {
	if strings.TrimSpace(placeName) == "" {
		return nil, failure.Validation(ProviderName, "Please enter a place name")
	}

	var loc geo.Location
	if err := c.post(ctx, "/place/geocode", map[string]string{"place_name": placeName}, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

type poiRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM int     `json:"radius_m"`
	Query   string  `json:"query,omitempty"`
}

// PointsOfInterest lists POIs within radiusMeters of center. A 404 means none were found.
func (c *Client) PointsOfInterest(ctx context.Context, center geo.Point, radiusMeters int) ([]geo.PointOfInterest, error) {
	if err := center.Validate(); err != nil {
		return nil, failure.Validation(ProviderName, err.Error())
	}

	var pois []geo.PointOfInterest
	req := poiRequest{Lat: center.Lat, Lng: center.Lng, RadiusM: radiusMeters}
	if err := c.post(ctx, "/place/poi", req, &pois); err != nil {
		return nil, err
	}
	return pois, nil
}

// Chat sends one chat turn to the assistant.
func (c *Client) Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, failure.Validation(ProviderName, "message is required")
	}

	var reply assistant.Reply
	if err := c.post(ctx, "/ai/chat", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Ping checks the backend's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return failure.FromStatus(ProviderName, resp.StatusCode, "")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("place backend request failed")
		return failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure.FromStatus(ProviderName, resp.StatusCode, detail(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return failure.Server(ProviderName, "DECODE_ERROR", fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}

// detail reads the "detail" field of an error body, if present.
func detail(body io.Reader) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 8192)).Decode(&e); err != nil {
		return ""
	}
	return e.Detail
}
