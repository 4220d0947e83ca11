package contracts

import "context"

type IVersionControl interface {
	HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error)
	// CommitAndPush stages the working tree on branch, commits it and pushes
	// to origin. It returns false when there was nothing to commit.
	CommitAndPush(ctx context.Context, repoPath string, branch string, message string) (bool, error)
	// OpenPullRequest asks the hosting service to merge head into base.
	OpenPullRequest(ctx context.Context, title string, body string, head string, base string) (bool, error)
}
