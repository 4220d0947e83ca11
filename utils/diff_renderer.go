package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultTheme is the chroma style used when none is configured.
const DefaultTheme = "dracula"

// UnifiedDiff returns a unified diff between the original and proposed content
// of a file. Identical content yields an empty string.
func UnifiedDiff(relativePath, original, proposed string) (string, error) {
	if original == proposed {
		return "", nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(proposed),
		FromFile: "a/" + relativePath,
		ToFile:   "b/" + relativePath,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to build diff for %s: %w", relativePath, err)
	}
	return text, nil
}

// RenderDiff writes a highlighted diff to w. When highlighting fails the lines
// are colored by their leading marker instead.
func RenderDiff(w io.Writer, diff string, theme string) error {
	if theme == "" {
		theme = DefaultTheme
	}

	if err := quick.Highlight(w, diff, "diff", "terminal256", theme); err == nil {
		return nil
	}

	for _, line := range strings.SplitAfter(diff, "\n") {
		var err error
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			_, err = fmt.Fprint(w, "\x1b[92m"+line+"\x1b[0m")
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			_, err = fmt.Fprint(w, "\x1b[91m"+line+"\x1b[0m")
		default:
			_, err = fmt.Fprint(w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
