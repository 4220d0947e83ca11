package vcs

import (
	"context"
	"log/slog"

	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/vcs/contracts"
)

// VersionControl hands batches off to git and GitHub.
type VersionControl struct {
	git    *GitOperations
	github *GitHubClient
}

func NewVersionControl(git *GitOperations, github *GitHubClient) contracts.IVersionControl {
	return &VersionControl{git: git, github: github}
}

func (v *VersionControl) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	status, err := NewGitOperations(repoPath).GetGitStatus(ctx)
	if err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodeVCSFailed, "failed to read git status", err)
	}
	return status != "", nil
}

func (v *VersionControl) CommitAndPush(ctx context.Context, repoPath string, branch string, message string) (bool, error) {
	git := NewGitOperations(repoPath)

	previous, err := git.GetBranchName(ctx)
	if err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodeVCSFailed, "failed to read current branch", err)
	}

	if err := git.AddFiles(ctx); err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodeVCSFailed, "failed to stage changes", err)
	}
	staged, err := git.HasStagedChanges(ctx)
	if err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodeVCSFailed, "failed to inspect staged changes", err)
	}
	if !staged {
		return false, nil
	}

	fail := func(reason string, cause error) (bool, error) {
		if previous != "" && previous != "HEAD" {
			if err := git.Checkout(ctx, previous); err != nil {
				slog.Warn("failed to restore branch", "branch", previous, "error", err)
			}
		}
		return false, docerrors.ExternalError(docerrors.ErrCodeVCSFailed, reason, cause).WithDetail("branch", branch)
	}

	if err := git.CheckoutNew(ctx, branch); err != nil {
		return fail("failed to create branch", err)
	}
	if err := git.Commit(ctx, message); err != nil {
		return fail("failed to commit changes", err)
	}
	if err := git.Push(ctx, branch); err != nil {
		return fail("failed to push branch", err)
	}
	return true, nil
}

// OpenPullRequest opens the pull request and then checks out base again,
// whether or not the request succeeded.
func (v *VersionControl) OpenPullRequest(ctx context.Context, title string, body string, head string, base string) (bool, error) {
	defer func() {
		if err := v.git.Checkout(ctx, base); err != nil {
			slog.Warn("failed to check out target branch", "branch", base, "error", err)
		}
	}()

	url, err := v.github.CreatePullRequest(ctx, title, body, head, base)
	if err != nil {
		return false, docerrors.ExternalError(docerrors.ErrCodePullRequest, "failed to open pull request", err).
			WithDetail("head", head)
	}
	slog.Info("pull request created", "url", url, "head", head, "base", base)
	return true, nil
}
