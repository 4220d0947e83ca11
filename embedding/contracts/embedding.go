package contracts

import (
	"context"

	"github.com/meysamhadeli/docai/models"
)

// IEmbedder turns text into a dense vector.
type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns 0 when the size is only known after the first call.
	Dimensions() int
	ModelName() string
	Close() error
}

// IEmbeddingIndex stores tagged texts and answers similarity queries over them.
type IEmbeddingIndex interface {
	Insert(ctx context.Context, id string, text string, tags map[string]string) error
	// Query returns at most k snippets whose tags contain every tagFilter pair,
	// ranked by score descending.
	Query(ctx context.Context, text string, k int, tagFilter map[string]string) ([]models.Snippet, error)
	Save() error
	Close() error
}
