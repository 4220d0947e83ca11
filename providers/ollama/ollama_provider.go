package ollama

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
	ollama_models "github.com/meysamhadeli/docai/providers/ollama/models"
	contracts2 "github.com/meysamhadeli/docai/token_management/contracts"
)

// OllamaConfig implements the Provider interface for Ollama.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Temperature     *float32
	TokenManagement contracts2.ITokenManagement
	Client          *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434/api"
)

// NewOllamaChatProvider initializes a new Ollama chat provider.
func NewOllamaChatProvider(config *OllamaConfig) contracts.IChatAIProvider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaConfig{
		BaseURL:         baseURL,
		Model:           config.Model,
		Temperature:     config.Temperature,
		TokenManagement: config.TokenManagement,
		Client:          client,
	}
}

func (ollamaProvider *OllamaConfig) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
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

		reqBody := ollama_models.OllamaChatCompletionRequest{
			Model: ollamaProvider.Model,
			Messages: []ollama_models.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: userInput},
			},
			Stream: true,
		}
		if ollamaProvider.Temperature != nil {
			reqBody.Options = &ollama_models.Options{Temperature: ollamaProvider.Temperature}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error marshalling request body: %w", err)})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat", ollamaProvider.BaseURL), bytes.NewBuffer(jsonData))
		if err != nil {
			send(models.StreamResponse{Err: fmt.Errorf("error creating request: %w", err)})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := ollamaProvider.Client.Do(req)
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
			if strings.TrimSpace(line) != "" {
				var response ollama_models.OllamaChatCompletionResponse
				if jsonErr := json.Unmarshal([]byte(line), &response); jsonErr != nil {
					send(models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", jsonErr)})
					return
				}

				if response.Message.Content != "" {
					if !send(models.StreamResponse{Content: response.Message.Content}) {
						return
					}
				}

				if response.Done {
					if ollamaProvider.TokenManagement != nil && response.PromptEvalCount > 0 {
						ollamaProvider.TokenManagement.UsedTokens(response.PromptEvalCount, response.EvalCount)
					}
					send(models.StreamResponse{Done: true})
					return
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
