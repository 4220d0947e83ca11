package embedding

import (
	"context"
	"fmt"
	"sync"
)

// countingEmbedder records calls and delegates to the static embedder.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	inner *StaticEmbedder
	model string
	dims  int
	err   error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: NewStaticEmbedder(), model: StaticModelName}
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.dims > 0 {
		return vec[:e.dims], nil
	}
	return vec, nil
}

func (e *countingEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return StaticDimensions
}

func (e *countingEmbedder) ModelName() string { return e.model }

func (e *countingEmbedder) Close() error { return nil }

func (e *countingEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var errEmbed = fmt.Errorf("embedding backend unavailable")
