package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meysamhadeli/docai/annotator/contracts"
	analyzer_contracts "github.com/meysamhadeli/docai/code_analyzer/contracts"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	provider_contracts "github.com/meysamhadeli/docai/providers/contracts"
)

const describePrompt = "You are a senior engineer writing a knowledge base about a code repository. " +
	"Summarize the given file in a few sentences: its purpose, the main classes and functions it defines, " +
	"and how other modules are expected to use it. Reply with plain text only."

const annotatePrompt = "You are an AI assistant specialized in adding comprehensive docstrings to source code. " +
	"Ensure that all functions, classes, and modules have clear docstrings. " +
	"Docstrings should give extensive context and explain purpose, parameters, return values, and any exceptions raised. " +
	"Do not change the behavior of the code. " +
	"Reply with the complete updated file inside a single fenced code block."

// Annotator drives a chat provider to describe and document files.
type Annotator struct {
	provider provider_contracts.IChatAIProvider
	analyzer analyzer_contracts.ICodeAnalyzer
}

func NewAnnotator(provider provider_contracts.IChatAIProvider, analyzer analyzer_contracts.ICodeAnalyzer) contracts.IAnnotator {
	return &Annotator{
		provider: provider,
		analyzer: analyzer,
	}
}

func (a *Annotator) Describe(ctx context.Context, content string) (string, error) {
	reply, err := a.collect(ctx, content, describePrompt)
	if err != nil {
		return "", docerrors.ExternalError(docerrors.ErrCodeAnnotatorFailed, "describe request failed", err)
	}

	description := strings.TrimSpace(reply)
	if description == "" {
		return "", docerrors.ExternalError(docerrors.ErrCodeAnnotatorFailed, "empty description", nil)
	}
	return description, nil
}

func (a *Annotator) Annotate(ctx context.Context, source string, contextText string, apply contracts.ApplyFn) (bool, error) {
	reply, err := a.collect(ctx, buildAnnotateInput(source, contextText), annotatePrompt)
	if err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodeAnnotatorFailed, "annotate request failed", err)
	}

	code, err := a.analyzer.ExtractCodeBlock(reply)
	if err != nil {
		slog.Warn("annotator reply has no code block", "error", err)
		return false, nil
	}

	return apply(code)
}

// buildAnnotateInput frames the retrieved context as worked examples ahead of the file itself.
func buildAnnotateInput(source string, contextText string) string {
	var builder strings.Builder
	if strings.TrimSpace(contextText) != "" {
		builder.WriteString("Here are some examples of code with comprehensive docstrings and descriptions of related files:\n\n")
		builder.WriteString(contextText)
		if !strings.HasSuffix(contextText, "\n") {
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}
	builder.WriteString("Now, please add appropriate docstrings to the following code:\n\n")
	builder.WriteString("```\n")
	builder.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		builder.WriteString("\n")
	}
	builder.WriteString("```\n")
	return builder.String()
}

// collect drains the streamed reply into one string.
func (a *Annotator) collect(ctx context.Context, userInput string, prompt string) (string, error) {
	var builder strings.Builder
	var streamErr error
	for response := range a.provider.ChatCompletionRequest(ctx, userInput, prompt) {
		if response.Err != nil {
			if streamErr == nil {
				streamErr = response.Err
			}
			continue
		}
		builder.WriteString(response.Content)
	}
	if streamErr != nil {
		return "", streamErr
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("chat request interrupted: %w", err)
	}
	return builder.String(), nil
}
