package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/meysamhadeli/docai/embedding/contracts"
)

const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int // 0 = learned from the first response
	Timeout    time.Duration
	Retry      RetryConfig
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEmbedder calls the /api/embed endpoint of a local Ollama server.
type OllamaEmbedder struct {
	config OllamaConfig
	client *http.Client

	mu   sync.RWMutex
	dims int
}

var _ contracts.IEmbedder = (*OllamaEmbedder)(nil)

func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimSuffix(strings.TrimRight(cfg.Host, "/"), "/api")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &OllamaEmbedder{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dims:   cfg.Dimensions,
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbedRequest{Model: e.config.Model, Input: []string{text}}

	var result ollamaEmbedResponse
	err := WithRetry(ctx, e.config.Retry, func() error {
		return postJSON(ctx, e.client, e.config.Host+"/api/embed", nil, req, &result)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	vec := result.Embeddings[0]
	e.mu.Lock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
	e.mu.Unlock()
	return vec, nil
}

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OllamaEmbedder) ModelName() string { return e.config.Model }

func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
