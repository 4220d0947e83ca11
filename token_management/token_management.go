package token_management

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/token_management/contracts"
)

// TokenEncoding is the BPE encoding used to measure prompt and context sizes.
const TokenEncoding = "cl100k_base"

// CharsPerToken is the ratio EstimateTokens falls back to when the encoding cannot be loaded.
const CharsPerToken = 4

// DefaultModelTokenLimit is the prompt limit assumed when none is configured.
const DefaultModelTokenLimit = 64000

var tokenCounter = sync.OnceValue(loadTokenCounter)

// loadTokenCounter fetches the BPE ranks on first use. tiktoken-go caches them
// under TIKTOKEN_CACHE_DIR.
func loadTokenCounter() func(string) int {
	encoding, err := tiktoken.GetEncoding(TokenEncoding)
	if err != nil {
		slog.Warn("token encoding unavailable, estimating from length", "encoding", TokenEncoding, "error", err)
		return EstimateTokens
	}
	return func(text string) int {
		return len(encoding.Encode(text, nil, nil))
	}
}

// CountTokens returns the token length of text under TokenEncoding.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return tokenCounter()(text)
}

// EstimateTokens approximates the token length of text from its byte length, rounding up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// TokenManager implementation
type tokenManager struct {
	mu    sync.Mutex
	usage contracts.Usage
}

type details struct {
	InputCostPerMillionTokens  float64
	OutputCostPerMillionTokens float64
}

// Prices in USD per million tokens. Unknown models cost nothing.
var modelDetails = map[string]details{
	"gpt-4o-mini":            {InputCostPerMillionTokens: 0.15, OutputCostPerMillionTokens: 0.6},
	"gpt-4o":                 {InputCostPerMillionTokens: 2.5, OutputCostPerMillionTokens: 10},
	"gpt-4.1-mini":           {InputCostPerMillionTokens: 0.4, OutputCostPerMillionTokens: 1.6},
	"gpt-4.1":                {InputCostPerMillionTokens: 2, OutputCostPerMillionTokens: 8},
	"text-embedding-3-small": {InputCostPerMillionTokens: 0.02},
	"text-embedding-3-large": {InputCostPerMillionTokens: 0.13},
}

// NewTokenManager creates a new token manager
func NewTokenManager() contracts.ITokenManagement {
	return &tokenManager{}
}

// UsedTokens records one chat call.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.usage.Input += inputToken
	tm.usage.Output += outputToken
	tm.usage.Requests++
}

func (tm *tokenManager) Usage() contracts.Usage {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return tm.usage
}

func (tm *tokenManager) DisplayTokens(chatProviderName string, chatModel string) {
	usage := tm.Usage()
	if usage.Requests == 0 {
		return
	}
	cost := tm.CalculateCost(chatProviderName, chatModel, usage)

	tokenInfo := fmt.Sprintf("Token Used: %d (%d in / %d out) - Requests: %d - Cost: %.6f $ - Chat Model: %s",
		usage.Total(), usage.Input, usage.Output, usage.Requests, cost, chatModel)

	tokenBox := lipgloss.BoxStyle.Render(tokenInfo)
	fmt.Println(tokenBox)
}

func (tm *tokenManager) CalculateCost(providerName string, modelName string, usage contracts.Usage) float64 {
	modelDetails, err := getModelDetails(providerName, modelName)
	if err != nil {
		return 0
	}
	inputCost := float64(usage.Input) * modelDetails.InputCostPerMillionTokens / 1000000.0
	outputCost := float64(usage.Output) * modelDetails.OutputCostPerMillionTokens / 1000000.0

	return inputCost + outputCost
}

func getModelDetails(providerName string, modelName string) (details, error) {
	providerName = strings.ToLower(providerName)
	modelName = strings.ToLower(modelName)

	// Local models are free.
	if providerName == "ollama" {
		return details{}, nil
	}

	model, exists := modelDetails[modelName]
	if !exists {
		return details{}, fmt.Errorf("model details price with name '%s' not found for provider '%s'", modelName, providerName)
	}

	return model, nil
}
