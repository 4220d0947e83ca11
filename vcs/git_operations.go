package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// stagePathspec stages the working tree minus backups and docai's own state.
var stagePathspec = []string{".", ":(exclude)*.bak", ":(exclude).docai"}

// GitOperations runs git commands inside one working tree.
type GitOperations struct {
	workingDir string
}

func NewGitOperations(workingDir string) *GitOperations {
	return &GitOperations{workingDir: workingDir}
}

func (g *GitOperations) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CheckGitRepo checks if the working directory is inside a git repository
func (g *GitOperations) CheckGitRepo(ctx context.Context) error {
	if _, err := g.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("not a git repository: %w", err)
	}
	return nil
}

// GetGitStatus returns the porcelain status of the working tree
func (g *GitOperations) GetGitStatus(ctx context.Context) (string, error) {
	return g.run(ctx, "status", "--porcelain")
}

func (g *GitOperations) AddFiles(ctx context.Context) error {
	args := append([]string{"add", "-A", "--"}, stagePathspec...)
	_, err := g.run(ctx, args...)
	return err
}

// HasStagedChanges checks if there are staged changes ready to commit
func (g *GitOperations) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

func (g *GitOperations) Checkout(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", branch)
	return err
}

// CheckoutNew creates or resets branch at HEAD and switches to it.
func (g *GitOperations) CheckoutNew(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", "-B", branch)
	return err
}

func (g *GitOperations) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

func (g *GitOperations) Push(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "push", "-u", "origin", branch)
	return err
}

// GetBranchName returns the current branch name
func (g *GitOperations) GetBranchName(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RemoteURL returns the fetch URL of origin.
func (g *GitOperations) RemoteURL(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
