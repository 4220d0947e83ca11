package contracts

import "context"

// ApplyFn receives the proposed replacement for a file and reports whether it was applied.
type ApplyFn func(newContent string) (bool, error)

type IAnnotator interface {
	// Describe returns a short natural-language description of a file.
	Describe(ctx context.Context, content string) (string, error)
	// Annotate asks for a documented version of source and hands it to apply.
	// A reply without a code block is reported as not applied.
	Annotate(ctx context.Context, source string, contextText string, apply ApplyFn) (bool, error)
}
