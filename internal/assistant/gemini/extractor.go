// Package gemini extracts chat entities with a Gemini model.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/vietnamexplorer/explorer/internal/assistant"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator produces text for a prompt. *genai.Models satisfies it through GenerateContent.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds configuration for the Gemini extractor.
type Config struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// Extractor asks Gemini to label spans in a chat message.
type Extractor struct {
	generator Generator
	model     string
	logger    zerolog.Logger
}

var _ assistant.Extractor = (*Extractor)(nil)

// New creates an extractor backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return NewWithGenerator(client.Models, cfg.Model, cfg.Logger), nil
}

// NewWithGenerator creates an extractor over any Generator.
func NewWithGenerator(g Generator, model string, logger zerolog.Logger) *Extractor {
	if model == "" {
		model = DefaultModel
	}
	return &Extractor{generator: g, model: model, logger: logger}
}

const promptTemplate = `Extract entities from this Vietnamese or English message about finding places.
Allowed labels: %s.
Return only a JSON array of objects {"label": string, "word": string}, where word is copied verbatim from the message.
Return [] when nothing matches.

Message: %s`

// Extract implements assistant.Extractor.
func (e *Extractor) Extract(ctx context.Context, text string) ([]assistant.Entity, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.Join(assistant.Labels, ", "), text)

	resp, err := e.generator.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	entities, err := parseEntities(resp.Text())
	if err != nil {
		return nil, err
	}

	e.logger.Debug().Int("entities", len(entities)).Str("model", e.model).Msg("gemini extraction complete")
	return entities, nil
}

// parseEntities reads the model output, tolerating a fenced code block.
func parseEntities(out string) ([]assistant.Entity, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)

	var raw []struct {
		Label string `json:"label"`
		Word  string `json:"word"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("decoding gemini output: %w", err)
	}

	allowed := make(map[string]bool, len(assistant.Labels))
	for _, l := range assistant.Labels {
		allowed[l] = true
	}

	entities := make([]assistant.Entity, 0, len(raw))
	for _, r := range raw {
		if !allowed[r.Label] || strings.TrimSpace(r.Word) == "" {
			continue
		}
		entities = append(entities, assistant.Entity{Label: r.Label, Word: r.Word})
	}
	return entities, nil
}
