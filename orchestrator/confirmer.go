package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/utils"
)

// IConfirmer decides whether generated changes go ahead.
type IConfirmer interface {
	Confirm(ctx context.Context, change models.ProposedChange) (bool, error)
	ConfirmPullRequest(ctx context.Context, folder string, files []string) (bool, error)
}

// AutoConfirmer accepts everything.
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(ctx context.Context, change models.ProposedChange) (bool, error) {
	return true, nil
}

func (AutoConfirmer) ConfirmPullRequest(ctx context.Context, folder string, files []string) (bool, error) {
	return true, nil
}

// ManualConfirmer shows a colored unified diff and asks on the terminal.
type ManualConfirmer struct {
	reader *bufio.Reader
	out    io.Writer
	theme  string
}

func NewManualConfirmer(in io.Reader, out io.Writer, theme string) *ManualConfirmer {
	return &ManualConfirmer{reader: bufio.NewReader(in), out: out, theme: theme}
}

func (m *ManualConfirmer) Confirm(ctx context.Context, change models.ProposedChange) (bool, error) {
	diff, err := utils.UnifiedDiff(change.Path, change.Original, change.Proposed)
	if err != nil {
		return false, err
	}

	fmt.Fprintln(m.out, lipgloss.Info.Render(fmt.Sprintf("Proposed changes for %s", change.Path)))
	if err := utils.RenderDiff(m.out, diff, m.theme); err != nil {
		return false, err
	}
	fmt.Fprintln(m.out)

	return utils.ConfirmPrompt(ctx, m.reader, m.out, fmt.Sprintf("Apply changes to %s?", change.Path))
}

func (m *ManualConfirmer) ConfirmPullRequest(ctx context.Context, folder string, files []string) (bool, error) {
	fmt.Fprintln(m.out, lipgloss.Info.Render(fmt.Sprintf("Pull request to be created for folder '%s':", folder)))
	for _, file := range files {
		fmt.Fprintln(m.out, lipgloss.Gray.Render("  - "+file))
	}
	return utils.ConfirmPrompt(ctx, m.reader, m.out, fmt.Sprintf("Create a pull request for '%s'?", folder))
}
