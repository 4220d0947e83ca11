package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meysamhadeli/docai/embedding/contracts"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-large"
)

var openAIModelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
	Timeout    time.Duration
	Retry      RetryConfig
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// OpenAIEmbedder calls the /embeddings endpoint of an OpenAI-compatible API.
type OpenAIEmbedder struct {
	config OpenAIConfig
	client *http.Client
}

var _ contracts.IEmbedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder validates the configuration and fills defaults.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &OpenAIEmbedder{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openAIEmbedRequest{Model: e.config.Model, Input: []string{text}}
	if e.config.Dimensions > 0 {
		dims := e.config.Dimensions
		req.Dimensions = &dims
	}
	headers := map[string]string{"Authorization": "Bearer " + e.config.APIKey}

	var result openAIEmbedResponse
	err := WithRetry(ctx, e.config.Retry, func() error {
		return postJSON(ctx, e.client, e.config.BaseURL+"/embeddings", headers, req, &result)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	if e.config.Dimensions > 0 {
		return e.config.Dimensions
	}
	return openAIModelDimensions[e.config.Model]
}

func (e *OpenAIEmbedder) ModelName() string { return e.config.Model }

func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
