package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/models"
	openai_models "github.com/meysamhadeli/docai/providers/openai/models"
	contracts2 "github.com/meysamhadeli/docai/token_management/contracts"
)

// OpenAIConfig implements the Provider interface for OpenAI-compatible APIs.
type OpenAIConfig struct {
	BaseURL         string
	Model           string
	Temperature     *float32
	ApiKey          string
	TokenManagement contracts2.ITokenManagement
	Client          *http.Client
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
	dataPrefix     = "data: "
	doneMarker     = "[DONE]"
)

// NewOpenAIChatProvider initializes a new OpenAI chat provider.
func NewOpenAIChatProvider(config *OpenAIConfig) contracts.IChatAIProvider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIConfig{
		BaseURL:         baseURL,
		Model:           config.Model,
		Temperature:     config.Temperature,
		ApiKey:          config.ApiKey,
		TokenManagement: config.TokenManagement,
		Client:          client,
	}
}

func (openAIProvider *OpenAIConfig) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)

	go func() {
		defer close(responseChan)

		send := func(resp models.StreamResponse) bool {
			select {
			case responseChan <- resp:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reqBody := openai_models.OpenAIChatCompletionRequest{
			Model: openAIProvider.Model,
			Messages: []openai_models.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: userInput},
			},
			Stream:        true,
			StreamOptions: &openai_models.StreamOptions{IncludeUsage: true},
			Temperature:   openAIProvider.Temperature,
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error marshalling request body: %w", err)})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat/completions", openAIProvider.BaseURL), bytes.NewBuffer(jsonData))
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error creating request: %w", err)})
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", openAIProvider.ApiKey))

		resp, err := openAIProvider.Client.Do(req)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				send(models.StreamResponse{Err: fmt.Errorf("request canceled: %w", err)})
				return
			}
			send(models.StreamResponse{Err: fmt.Errorf("error sending request: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			var apiError models.AIError
			if err := json.Unmarshal(body, &apiError); err != nil || apiError.Error.Message == "" {
				send(models.StreamResponse{Err: fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, strings.TrimSpace(string(body)))})
				return
			}
			send(models.StreamResponse{Err: fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, apiError.Error.Message)})
			return
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, dataPrefix) {
				data := strings.TrimPrefix(line, dataPrefix)
				if data == doneMarker {
					send(models.StreamResponse{Done: true})
					return
				}

				var response openai_models.OpenAIChatCompletionResponse
				if jsonErr := json.Unmarshal([]byte(data), &response); jsonErr != nil {
					send(models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", jsonErr)})
					return
				}

				if response.Usage != nil && openAIProvider.TokenManagement != nil {
					openAIProvider.TokenManagement.UsedTokens(response.Usage.PromptTokens, response.Usage.CompletionTokens)
				}

				for _, choice := range response.Choices {
					if choice.Delta.Content == "" {
						continue
					}
					if !send(models.StreamResponse{Content: choice.Delta.Content}) {
						return
					}
				}
			}

			if err != nil {
				if err == io.EOF {
					send(models.StreamResponse{Done: true})
					return
				}
				send(models.StreamResponse{Err: fmt.Errorf("error reading stream: %w", err)})
				return
			}
		}
	}()

	return responseChan
}
