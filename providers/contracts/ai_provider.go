package contracts

import (
	"context"

	"github.com/meysamhadeli/docai/providers/models"
)

type IChatAIProvider interface {
	// ChatCompletionRequest streams the reply to userInput under the system prompt.
	// The channel is closed when the reply ends or fails.
	ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse
}
