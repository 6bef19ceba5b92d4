package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini Developer API client
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint, used by tests
	BaseURL string
}

// GeminiClient implements Completer through the genai SDK
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrProvider)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Model returns the configured model name
func (c *GeminiClient) Model() string { return c.model }

// Complete asks for application/json output constrained by responseJsonSchema
func (c *GeminiClient) Complete(ctx context.Context, p Prompt) (content string, err error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.ObserveUpstream("gemini", p.SchemaName, start, err, "error")
	}()

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if p.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.Schema != nil {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseJsonSchema = p.Schema
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(p.User), genConfig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	content = strings.TrimSpace(resp.Text())
	if content == "" {
		return "", ErrEmptyCompletion
	}

	logging.Debug("LLM completion finished",
		"provider", "gemini",
		"model", c.model,
		"schema", p.SchemaName,
		"duration", time.Since(start),
		"response_len", len(content))
	return content, nil
}
