package embedding

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/docai/embedding/contracts"
)

// Config selects and configures an embedder.
type Config struct {
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size"`
}

// NewEmbedder builds the configured embedder wrapped in an LRU cache.
func NewEmbedder(cfg Config) (contracts.IEmbedder, error) {
	var inner contracts.IEmbedder

	switch strings.ToLower(cfg.Provider) {
	case "openai", "azure-openai", "openrouter":
		embedder, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		inner = embedder
	case "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "static", "":
		inner = NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
