package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
)

// OpenAIConfig configures an OpenAI-compatible /chat/completions client
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient implements Completer with json_schema structured outputs
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient creates a client; an empty BaseURL means api.openai.com
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the prompt at temperature 0 with the schema enforced in strict mode
func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (content string, err error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: API key not configured", ErrProvider)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveUpstream("openai", p.SchemaName, start, err, "error")
	}()

	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: 0,
	}
	if p.Schema != nil {
		reqBody.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   p.SchemaName,
				Strict: true,
				Schema: p.Schema,
			},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, string(body))
	}

	var decoded openAIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrProvider, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrProvider, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	choice := decoded.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", ErrProvider, choice.Message.Refusal)
	}
	content = strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	logging.Debug("LLM completion finished",
		"provider", "openai",
		"model", c.model,
		"schema", p.SchemaName,
		"duration", time.Since(start),
		"response_len", len(content))
	return content, nil
}
