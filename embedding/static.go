package embedding

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/meysamhadeli/docai/embedding/contracts"
	"github.com/zeebo/xxh3"
)

// StaticDimensions is the vector size produced by StaticEmbedder.
const StaticDimensions = 256

// StaticModelName identifies vectors produced by StaticEmbedder.
const StaticModelName = "static-hash-v1"

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "is": true, "for": true,
	"def": true, "class": true, "return": true, "import": true, "self": true,
}

// StaticEmbedder builds hash-based vectors offline. It needs no network or
// model, and gives deterministic results with modest semantic quality.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ contracts.IEmbedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	vector := make([]float32, StaticDimensions)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}

	for _, token := range tokenize(trimmed) {
		vector[hashToIndex(token)] += tokenWeight
	}
	for _, ngram := range extractNgrams(strings.ToLower(trimmed), ngramSize) {
		vector[hashToIndex(ngram)] += ngramWeight
	}

	normalize(vector)
	return vector, nil
}

func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

func (e *StaticEmbedder) ModelName() string { return StaticModelName }

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, part := range splitCamelCase(word) {
			lower := strings.ToLower(part)
			if lower != "" && !stopWords[lower] {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCamelCase(s string) []string {
	var parts []string
	var current []rune
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			parts = append(parts, string(current))
			current = nil
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}

func extractNgrams(text string, n int) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

func hashToIndex(s string) int {
	return int(xxh3.HashString(s) % StaticDimensions)
}

func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
