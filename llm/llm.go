// Package llm runs schema-constrained chat completions against the configured
// provider and returns the raw JSON text the model produced.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/drugcheck-api/config"
)

var (
	// ErrEmptyCompletion means the provider answered without any content
	ErrEmptyCompletion = errors.New("model returned no content")
	// ErrProvider wraps provider-side failures (status, transport, refusals)
	ErrProvider = errors.New("LLM provider error")
	// ErrMalformedOutput means the content was not valid JSON for the schema
	ErrMalformedOutput = errors.New("model output is not valid JSON")
)

// Prompt is one system + user exchange with the JSON schema the answer must follow
type Prompt struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Completer returns the model's JSON answer for a prompt
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Model() string
}

// New builds the completer selected by cfg.LLMProvider
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

// Decode unmarshals a completion into v. Markdown code fences some models
// wrap around JSON are stripped first; unknown fields are rejected.
func Decode(raw string, v any) error {
	raw = stripFences(raw)
	if raw == "" {
		return ErrEmptyCompletion
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
