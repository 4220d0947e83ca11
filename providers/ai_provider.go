package providers

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/ollama"
	"github.com/meysamhadeli/docai/providers/openai"
	contracts2 "github.com/meysamhadeli/docai/token_management/contracts"
)

// AIProviderConfig configures the chat model used for descriptions and annotations.
type AIProviderConfig struct {
	Provider    string   `mapstructure:"provider"`
	BaseURL     string   `mapstructure:"base_url"`
	Model       string   `mapstructure:"model"`
	Temperature *float32 `mapstructure:"temperature"`
	// MaxTokens is the model's prompt token limit.
	MaxTokens int    `mapstructure:"max_tokens"`
	ApiKey    string `mapstructure:"api_key"`
}

// ChooseProvider builds the chat provider named by the configuration.
func ChooseProvider(config *AIProviderConfig, tokenManagement contracts2.ITokenManagement) (contracts.IChatAIProvider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "azure-openai", "openrouter":
		if config.ApiKey == "" {
			return nil, fmt.Errorf("api key is required for provider '%s'", config.Provider)
		}
		return openai.NewOpenAIChatProvider(&openai.OpenAIConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			ApiKey:          config.ApiKey,
			TokenManagement: tokenManagement,
		}), nil
	case "ollama":
		return ollama.NewOllamaChatProvider(&ollama.OllamaConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			TokenManagement: tokenManagement,
		}), nil
	default:
		return nil, fmt.Errorf("provider '%s' is not supported", config.Provider)
	}
}
