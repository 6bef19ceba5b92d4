package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/drugcheck-api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"verdict": map[string]any{"type": "string"},
	},
	"required":             []string{"verdict"},
	"additionalProperties": false,
}

func TestOpenAIComplete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"verdict\":\"SAFE TO PROCEED\"} "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Timeout: time.Second})
	out, err := c.Complete(context.Background(), Prompt{
		System: "rules", User: "question", SchemaName: "CompatibilityResult", Schema: verdictSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"SAFE TO PROCEED"}`, out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Zero(t, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "rules", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
	assert.Equal(t, "CompatibilityResult", got.ResponseFormat.JSONSchema.Name)
}

func TestOpenAICompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ErrProvider},
		{"error payload", http.StatusOK, `{"error":{"message":"quota"}}`, ErrProvider},
		{"refusal", http.StatusOK, `{"choices":[{"message":{"content":"","refusal":"no"}}]}`, ErrProvider},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyCompletion},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, ErrEmptyCompletion},
		{"garbage", http.StatusOK, `not json`, ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
			_, err := c.Complete(context.Background(), Prompt{User: "x", SchemaName: "s", Schema: verdictSchema})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{}).Complete(context.Background(), Prompt{User: "x"})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestGeminiComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"verdict\":\"PROCEED WITH CAUTION\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "g-key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", c.Model())

	out, err := c.Complete(context.Background(), Prompt{System: "rules", User: "q", SchemaName: "s", Schema: verdictSchema})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"PROCEED WITH CAUTION"}`, out)

	genConfig, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing from request: %v", body)
	assert.Equal(t, "application/json", genConfig["responseMimeType"])
	assert.NotNil(t, genConfig["responseJsonSchema"])
	assert.NotNil(t, body["systemInstruction"])
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(context.Background(), &config.Config{
		LLMProvider: config.ProviderOpenAI, LLMModel: "gpt-4o", OpenAIAPIKey: "k", LLMTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
	assert.Equal(t, "gpt-4o", c.Model())

	_, err = New(context.Background(), &config.Config{LLMProvider: "claude"})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	type out struct {
		Verdict string `json:"verdict"`
	}

	var v out
	require.NoError(t, Decode("```json\n{\"verdict\":\"SAFE TO PROCEED\"}\n```", &v))
	assert.Equal(t, "SAFE TO PROCEED", v.Verdict)

	assert.ErrorIs(t, Decode("   ", &v), ErrEmptyCompletion)
	assert.ErrorIs(t, Decode(`{"verdict":1}`, &v), ErrMalformedOutput)
	assert.ErrorIs(t, Decode(`{"verdict":"x","extra":true}`, &v), ErrMalformedOutput)
}
