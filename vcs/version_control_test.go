package vcs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitEnv(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "docai")
	t.Setenv("GIT_AUTHOR_EMAIL", "docai@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "docai")
	t.Setenv("GIT_COMMITTER_EMAIL", "docai@example.com")
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := NewGitOperations(dir).run(context.Background(), args...)
	require.NoError(t, err, "git %v", args)
	return out
}

// newRepo creates a working tree on main with a bare origin.
func newRepo(t *testing.T) (string, string) {
	t.Helper()
	gitEnv(t)
	base := t.TempDir()
	origin := filepath.Join(base, "origin.git")
	work := filepath.Join(base, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))

	mustGit(t, base, "init", "--bare", origin)
	mustGit(t, work, "init")
	mustGit(t, work, "symbolic-ref", "HEAD", "refs/heads/main")
	require.NoError(t, os.WriteFile(filepath.Join(work, "a.py"), []byte("x = 1\n"), 0o644))
	mustGit(t, work, "add", ".")
	mustGit(t, work, "commit", "-m", "init")
	mustGit(t, work, "remote", "add", "origin", origin)
	mustGit(t, work, "push", "-u", "origin", "main")
	return work, origin
}

func TestHasUncommittedChanges(t *testing.T) {
	work, _ := newRepo(t)
	vc := NewVersionControl(NewGitOperations(work), nil)
	ctx := context.Background()

	dirty, err := vc.HasUncommittedChanges(ctx, work)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.py"), []byte("x = 2\n"), 0o644))
	dirty, err = vc.HasUncommittedChanges(ctx, work)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestCommitAndPushSkipsBackups(t *testing.T) {
	work, origin := newRepo(t)
	vc := NewVersionControl(NewGitOperations(work), nil)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.py.20240101120000.bak"), []byte("x = 1\n"), 0o644))
	pushed, err := vc.CommitAndPush(ctx, work, "docai-root-0000aaaa", "msg")
	require.NoError(t, err)
	assert.False(t, pushed, "backups alone are not a change")

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.py"), []byte("# doc\nx = 1\n"), 0o644))
	pushed, err = vc.CommitAndPush(ctx, work, "docai-root-0000aaaa", CommitMessage("."))
	require.NoError(t, err)
	assert.True(t, pushed)

	branches := mustGit(t, origin, "branch", "--list", "docai-root-0000aaaa")
	assert.Contains(t, branches, "docai-root-0000aaaa")
	files := mustGit(t, work, "show", "--name-only", "--pretty=format:%s", "HEAD")
	assert.True(t, strings.HasPrefix(files, CommitMessage(".")))
	assert.Contains(t, files, "a.py")
	assert.NotContains(t, files, ".bak")
}

func TestCommitAndPushRestoresBranchOnPushFailure(t *testing.T) {
	work, _ := newRepo(t)
	mustGit(t, work, "remote", "set-url", "origin", filepath.Join(t.TempDir(), "missing.git"))
	vc := NewVersionControl(NewGitOperations(work), nil)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.py"), []byte("x = 3\n"), 0o644))
	pushed, err := vc.CommitAndPush(ctx, work, "docai-root-1111bbbb", "msg")
	require.Error(t, err)
	assert.False(t, pushed)

	branch, err := NewGitOperations(work).GetBranchName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestOpenPullRequestChecksOutBase(t *testing.T) {
	work, _ := newRepo(t)
	ctx := context.Background()
	mustGit(t, work, "checkout", "-B", "docai-root-2222cccc")

	for _, status := range []int{http.StatusCreated, http.StatusInternalServerError} {
		mustGit(t, work, "checkout", "docai-root-2222cccc")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"html_url": "u", "message": "m"}`))
		}))

		vc := NewVersionControl(NewGitOperations(work), NewGitHubClient(ctx, server.URL, "owner/repo", "tok"))
		ok, err := vc.OpenPullRequest(ctx, "t", "b", "docai-root-2222cccc", "main")
		server.Close()

		assert.Equal(t, status == http.StatusCreated, ok)
		assert.Equal(t, status != http.StatusCreated, err != nil)
		branch, berr := NewGitOperations(work).GetBranchName(ctx)
		require.NoError(t, berr)
		assert.Equal(t, "main", branch)
	}
}

func TestRemoteURL(t *testing.T) {
	work, origin := newRepo(t)
	url, err := NewGitOperations(work).RemoteURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, origin, url)
}
