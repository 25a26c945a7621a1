// Package gliner extracts entities with a GLiNER model on the HuggingFace inference router.
package gliner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

const (
	// ProviderName identifies this extractor.
	ProviderName = "gliner"

	// DefaultURL is the hosted small multilingual GLiNER model.
	DefaultURL = "https://router.huggingface.co/models/urchade/gliner_small-v2.1"

	// DefaultTimeout bounds one inference call.
	DefaultTimeout = 30 * time.Second

	// DefaultLoadingWait is how long to wait before retrying while the model loads.
	DefaultLoadingWait = 2 * time.Second
)

// errModelLoading marks the 503 the router returns while the model is cold.
var errModelLoading = errors.New("model loading")

// ClientConfig holds configuration for the GLiNER client.
type ClientConfig struct {
	URL         string
	Token       string
	LoadingWait time.Duration
	HTTPClient  *resilience.Client
	Registry    *resilience.Registry
	Logger      zerolog.Logger
}

// Client calls the GLiNER inference endpoint.
type Client struct {
	url         string
	token       string
	loadingWait time.Duration
	httpClient  *resilience.Client
	logger      zerolog.Logger
}

var _ assistant.Extractor = (*Client)(nil)

// NewClient creates a GLiNER client.
func NewClient(cfg ClientConfig) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	wait := cfg.LoadingWait
	if wait == 0 {
		wait = DefaultLoadingWait
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.SingleShotClientConfig(ProviderName)
		clientCfg.Timeout = DefaultTimeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}
	return &Client{
		url:         url,
		token:       cfg.Token,
		loadingWait: wait,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

type inferenceRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		Labels []string `json:"labels"`
	} `json:"parameters"`
}

type inferenceEntity struct {
	EntityGroup string  `json:"entity_group"`
	Label       string  `json:"label"`
	Word        string  `json:"word"`
	Score       float64 `json:"score"`
}

// Extract labels spans of text. A 503 while the model loads is retried once.
func (c *Client) Extract(ctx context.Context, text string) ([]assistant.Entity, error) {
	payload := inferenceRequest{Inputs: text}
	payload.Parameters.Labels = assistant.Labels

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var raw []inferenceEntity
	operation := func() error {
		raw, err = c.call(ctx, body)
		if errors.Is(err, errModelLoading) {
			c.logger.Debug().Msg("gliner model loading, retrying")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.loadingWait), 1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	entities := make([]assistant.Entity, 0, len(raw))
	for _, e := range raw {
		label := e.EntityGroup
		if label == "" {
			label = e.Label
		}
		entities = append(entities, assistant.Entity{Label: label, Word: e.Word, Score: e.Score})
	}
	return entities, nil
}

func (c *Client) call(ctx context.Context, body []byte) ([]inferenceEntity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure.FromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, errModelLoading
	case resp.StatusCode != http.StatusOK:
		return nil, failure.FromStatus(ProviderName, resp.StatusCode, "")
	}

	var out []inferenceEntity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failure.Server(ProviderName, "DECODE_ERROR", fmt.Sprintf("decoding response: %v", err))
	}
	return out, nil
}
