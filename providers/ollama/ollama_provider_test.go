package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ollama_models "github.com/meysamhadeli/docai/providers/ollama/models"
	"github.com/meysamhadeli/docai/token_management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletionRequest_StreamsLines(t *testing.T) {
	temperature := float32(0.2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollama_models.OllamaChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		if assert.NotNil(t, req.Options) && assert.NotNil(t, req.Options.Temperature) {
			assert.InDelta(t, 0.2, *req.Options.Temperature, 1e-6)
		}

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Parses "},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"config."},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":40,"eval_count":4}` + "\n"))
	}))
	defer server.Close()

	tm := token_management.NewTokenManager()
	provider := NewOllamaChatProvider(&OllamaConfig{
		BaseURL: server.URL + "/api", Model: "llama3", Temperature: &temperature, TokenManagement: tm,
	})

	var sb strings.Builder
	done := false
	for resp := range provider.ChatCompletionRequest(context.Background(), "describe", "system") {
		require.NoError(t, resp.Err)
		sb.WriteString(resp.Content)
		if resp.Done {
			done = true
		}
	}

	assert.True(t, done)
	assert.Equal(t, "Parses config.", sb.String())
	assert.Equal(t, 44, tm.Usage().Total())
}

func TestChatCompletionRequest_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	provider := NewOllamaChatProvider(&OllamaConfig{BaseURL: server.URL + "/api", Model: "missing"})

	var gotErr error
	for resp := range provider.ChatCompletionRequest(context.Background(), "x", "y") {
		if resp.Err != nil {
			gotErr = resp.Err
		}
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "404")
	assert.Contains(t, gotErr.Error(), "model not found")
}
