// Package openweathermap reads current conditions from the OpenWeatherMap
// /weather endpoint.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

const (
	ProviderName   = "openweathermap"
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// maxErrorBody caps how much of a failed response is read for its message.
	maxErrorBody = 4 << 10
)

// ClientConfig configures a Client. Only APIKey is required.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// Language asks for localized descriptions, e.g. "vi". Empty keeps English.
	Language string

	// HTTPClient defaults to a single-shot resilient client.
	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// Client implements weather.Provider.
type Client struct {
	endpoint *url.URL
	apiKey   string
	language string
	http     *resilience.Client
	log      zerolog.Logger
}

var _ weather.Provider = (*Client)(nil)

// NewClient creates a Client. A BaseURL that does not parse falls back to
// DefaultBaseURL.
func NewClient(cfg ClientConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint, err := url.Parse(base)
	if err != nil {
		cfg.Logger.Warn().Err(err).Str("base_url", base).Msg("invalid weather base url, using default")
		endpoint, _ = url.Parse(DefaultBaseURL)
	}
	endpoint = endpoint.JoinPath("weather")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = resilience.NewClient(resilience.SingleShotClientConfig(ProviderName))
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		http:     hc,
		log:      cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

func (c *Client) Name() string { return ProviderName }

// CurrentWeather fetches conditions at p in metric units.
func (c *Client) CurrentWeather(ctx context.Context, p geo.Point) (*weather.Snapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, failure.Validation(ProviderName, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.urlFor(p), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Stringer("point", p).Msg("weather lookup failed")
		return nil, failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.FromStatus(ProviderName, resp.StatusCode, upstreamMessage(resp.Body))
	}

	var body observation
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, failure.Server(ProviderName, "DECODE_ERROR", "malformed weather payload: "+err.Error())
	}
	return body.snapshot(), nil
}

func (c *Client) urlFor(p geo.Point) string {
	q := url.Values{
		"lat":   {strconv.FormatFloat(p.Lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(p.Lng, 'f', 6, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	if c.language != "" {
		q.Set("lang", c.language)
	}
	u := *c.endpoint
	u.RawQuery = q.Encode()
	return u.String()
}

// upstreamMessage extracts {"message": ...} from an error body, if present.
func upstreamMessage(r io.Reader) string {
	var e struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&e)
	return e.Message
}

// observation is the subset of the /weather payload the explorer shows.
type observation struct {
	Conditions []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (o *observation) snapshot() *weather.Snapshot {
	s := &weather.Snapshot{
		TemperatureC: o.Main.Temp,
		HumidityPct:  o.Main.Humidity,
		WindSpeedMs:  o.Wind.Speed,
	}
	// The first entry is the primary condition.
	if len(o.Conditions) > 0 {
		first := o.Conditions[0]
		s.Condition, s.Description, s.IconCode = first.Main, first.Description, first.Icon
	}
	return s
}
