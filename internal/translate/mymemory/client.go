// Package mymemory implements translation against the MyMemory public API.
package mymemory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/translate"
)

const (
	// ProviderName identifies this translation provider.
	ProviderName = "mymemory"

	// DefaultBaseURL is the MyMemory API base URL.
	DefaultBaseURL = "https://api.mymemory.translated.net"
)

// ClientConfig holds configuration for the MyMemory client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// Client is a MyMemory API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

var _ translate.Translator = (*Client)(nil)

// NewClient creates a new MyMemory client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SingleShotClientConfig(ProviderName))
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}
}

// Translate translates text. The API reports logical failures inside a 200 body,
// so success requires responseStatus 200 and a non-empty translation.
func (c *Client) Translate(ctx context.Context, text string, pair translate.Pair) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", failure.Validation(ProviderName, translate.MessageEmptyText)
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", pair.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("translation request failed")
		return "", failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", failure.FromStatus(ProviderName, resp.StatusCode, "")
	}

	var body translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", failure.Server(ProviderName, "DECODE_ERROR", fmt.Sprintf("decoding response: %v", err))
	}

	if body.status() != http.StatusOK || body.ResponseData.TranslatedText == "" {
		return "", failure.Server(ProviderName, "TRANSLATION_FAILED", body.ResponseDetails)
	}

	return body.ResponseData.TranslatedText, nil
}

type translateResponse struct {
	ResponseData struct {
		TranslatedText string  `json:"translatedText"`
		Match          float64 `json:"match"`
	} `json:"responseData"`
	// ResponseStatus is a number on success and sometimes a string on error.
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
}

func (r translateResponse) status() int {
	var n int
	if err := json.Unmarshal(r.ResponseStatus, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(r.ResponseStatus, &s); err == nil {
		fmt.Sscanf(s, "%d", &n)
	}
	return n
}
