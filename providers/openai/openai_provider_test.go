package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meysamhadeli/docai/token_management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openai_models "github.com/meysamhadeli/docai/providers/openai/models"
)

func collect(t *testing.T, provider *OpenAIConfig) (string, error) {
	t.Helper()
	var sb strings.Builder
	for resp := range provider.ChatCompletionRequest(context.Background(), "user", "system") {
		if resp.Err != nil {
			return sb.String(), resp.Err
		}
		sb.WriteString(resp.Content)
	}
	return sb.String(), nil
}

func TestChatCompletionRequest_StreamsContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req openai_models.OpenAIChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"```python\\n\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x = 1\\n```\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":3,\"total_tokens\":15}}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	tm := token_management.NewTokenManager()
	provider := NewOpenAIChatProvider(&OpenAIConfig{BaseURL: server.URL + "/v1", Model: "gpt-4o-mini", ApiKey: "key", TokenManagement: tm}).(*OpenAIConfig)

	content, err := collect(t, provider)
	require.NoError(t, err)
	assert.Equal(t, "```python\nx = 1\n```", content)

	usage := tm.Usage()
	assert.Equal(t, 15, usage.Total())
	assert.Equal(t, 12, usage.Input)
	assert.Equal(t, 3, usage.Output)
	assert.Equal(t, 1, usage.Requests)
}

func TestChatCompletionRequest_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIChatProvider(&OpenAIConfig{BaseURL: server.URL, ApiKey: "key"}).(*OpenAIConfig)

	_, err := collect(t, provider)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}
