package token_management

import (
	"strings"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"

	"github.com/meysamhadeli/docai/token_management/contracts"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 250, EstimateTokens(strings.Repeat("x", 1000)))
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))

	source := "def load_config(path):\n    return yaml.safe_load(open(path))\n"
	assert.Positive(t, CountTokens(source))
	assert.Greater(t, CountTokens(source+source), CountTokens(source))
}

func TestCountTokensMatchesEncoding(t *testing.T) {
	encoding, err := tiktoken.GetEncoding(TokenEncoding)
	if err != nil {
		t.Skipf("encoding %s unavailable: %v", TokenEncoding, err)
	}

	source := "class Repo:\n    def fetch(self, ref_id: int) -> dict:\n        return self._cache[ref_id]\n"
	count := loadTokenCounter()
	assert.Equal(t, len(encoding.Encode(source, nil, nil)), count(source))
	assert.Equal(t, 2, count("hello world"))
}

func TestTokenManager_Accumulates(t *testing.T) {
	tm := NewTokenManager()
	assert.Equal(t, contracts.Usage{}, tm.Usage())

	tm.UsedTokens(100, 20)
	tm.UsedTokens(50, 5)

	usage := tm.Usage()
	assert.Equal(t, 175, usage.Total())
	assert.Equal(t, 150, usage.Input)
	assert.Equal(t, 25, usage.Output)
	assert.Equal(t, 2, usage.Requests)
}

func TestCalculateCost(t *testing.T) {
	tm := NewTokenManager()
	million := contracts.Usage{Input: 1000000, Output: 1000000}

	assert.InDelta(t, 0.15+0.6, tm.CalculateCost("openai", "gpt-4o-mini", million), 1e-9)
	assert.InDelta(t, 0.15, tm.CalculateCost("openai", "GPT-4o-mini", contracts.Usage{Input: 1000000}), 1e-9)
	assert.Zero(t, tm.CalculateCost("ollama", "gpt-4o-mini", million))
	assert.Zero(t, tm.CalculateCost("openai", "unknown-model", contracts.Usage{Input: 1000, Output: 1000}))
}
