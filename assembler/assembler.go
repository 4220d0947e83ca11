package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/meysamhadeli/docai/embedding/contracts"
	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/token_management"
)

// DefaultRetrievalK is the number of snippets fetched per identifier.
const DefaultRetrievalK = 5

// DescriptionTags selects stored file descriptions in the embedding index.
var DescriptionTags = map[string]string{"file_type": "description"}

// Request describes the context wanted for one annotation call.
type Request struct {
	// Target is the repository-relative path of the file being annotated.
	Target            string
	StoredDescription string
	Identifiers       []string
	// TokenBudget is the model limit minus the tokens of the file itself.
	TokenBudget int
}

// Assembler builds prompt context from a file's own description and
// related descriptions retrieved from the embedding index.
type Assembler struct {
	index      contracts.IEmbeddingIndex
	retrievalK int
}

func NewAssembler(index contracts.IEmbeddingIndex, retrievalK int) *Assembler {
	if retrievalK <= 0 {
		retrievalK = DefaultRetrievalK
	}
	return &Assembler{index: index, retrievalK: retrievalK}
}

type candidate struct {
	snippet  models.Snippet
	query    int
	position int
}

// Assemble returns the context text for req. The stored description always
// comes first; retrieved snippets follow in rank order while they fit the budget.
func (a *Assembler) Assemble(ctx context.Context, req Request) string {
	var parts []string
	used := 0

	if description := strings.TrimSpace(req.StoredDescription); description != "" {
		part := formatDescription(req.Target, description)
		parts = append(parts, part)
		used = token_management.CountTokens(part)
	}

	for _, c := range a.retrieve(ctx, req) {
		part := formatSnippet(c.snippet)
		cost := token_management.CountTokens(part)
		if used+cost > req.TokenBudget {
			break
		}
		parts = append(parts, part)
		used += cost
	}

	return strings.Join(parts, "")
}

// retrieve queries the index once per identifier and returns the merged,
// deduplicated candidates in rank order.
func (a *Assembler) retrieve(ctx context.Context, req Request) []candidate {
	if a.index == nil || len(req.Identifiers) == 0 {
		return nil
	}

	target := models.NormalizePath(req.Target)
	byID := make(map[string]int)
	var merged []candidate

	var failed []string
	var firstErr error
	for queryIndex, identifier := range req.Identifiers {
		snippets, err := a.index.Query(ctx, identifier, a.retrievalK, DescriptionTags)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, identifier)
			continue
		}

		for position, snippet := range snippets {
			if models.NormalizePath(snippet.ID) == target {
				continue
			}
			if existing, ok := byID[snippet.ID]; ok {
				if snippet.Score > merged[existing].snippet.Score {
					merged[existing].snippet = snippet
				}
				continue
			}
			byID[snippet.ID] = len(merged)
			merged = append(merged, candidate{snippet: snippet, query: queryIndex, position: position})
		}
	}

	if firstErr != nil {
		slog.Warn("context retrieval failed for some identifiers",
			"file", req.Target, "failed", failed, "error", firstErr)
	}
	if len(merged) == 0 {
		slog.Warn("no related descriptions retrieved", "file", req.Target)
		return nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].snippet.Score != merged[j].snippet.Score {
			return merged[i].snippet.Score > merged[j].snippet.Score
		}
		if merged[i].query != merged[j].query {
			return merged[i].query < merged[j].query
		}
		return merged[i].position < merged[j].position
	})
	return merged
}

func formatDescription(target string, description string) string {
	return fmt.Sprintf("Description of %s:\n%s\n\n", target, description)
}

func formatSnippet(snippet models.Snippet) string {
	return fmt.Sprintf("Related file %s:\n%s\n\n", snippet.ID, strings.TrimSpace(snippet.Text))
}
