package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/meysamhadeli/docai/assembler"
	"github.com/meysamhadeli/docai/context_store"
	"github.com/meysamhadeli/docai/fingerprint"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/token_management"
	"github.com/meysamhadeli/docai/traverser"
	"github.com/meysamhadeli/docai/vcs"
)

// DefaultHeaderLine marks files the tool has annotated.
const DefaultHeaderLine = "# Docstring generated by docai"

// DefaultMaxDepth is the deepest folder level that gets its own batch.
const DefaultMaxDepth = 2

// PullRequestOptions controls the per-batch handoff.
type PullRequestOptions struct {
	Enabled bool
	// Repo is the owner/repo slug on GitHub.
	Repo         string
	Token        string
	BranchName   string
	Name         string
	TargetBranch string
}

// Options configures one run.
type Options struct {
	RepoPath        string
	MaxDepth        int
	Manual          bool
	ModelTokenLimit int
	RetrievalK      int
	Extensions      []string
	// CacheFile and ContextFile are resolved against RepoPath when relative.
	CacheFile   string
	ContextFile string
	HeaderLine  string
	NoCache     bool
	PullRequest PullRequestOptions
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.ModelTokenLimit <= 0 {
		o.ModelTokenLimit = token_management.DefaultModelTokenLimit
	}
	if o.RetrievalK <= 0 {
		o.RetrievalK = assembler.DefaultRetrievalK
	}
	if len(o.Extensions) == 0 {
		o.Extensions = traverser.DefaultExtensions
	}
	if o.CacheFile == "" {
		o.CacheFile = fingerprint.DefaultCacheFileName
	}
	if o.ContextFile == "" {
		o.ContextFile = context_store.DefaultContextFileName
	}
	if o.HeaderLine == "" {
		o.HeaderLine = DefaultHeaderLine
	}
	if o.PullRequest.BranchName == "" {
		o.PullRequest.BranchName = vcs.DefaultBranchName
	}
	if o.PullRequest.Name == "" {
		o.PullRequest.Name = vcs.DefaultPullRequestName
	}
	if o.PullRequest.TargetBranch == "" {
		o.PullRequest.TargetBranch = vcs.DefaultTargetBranch
	}
	return o
}

// Validate rejects options that must stop the run before any work starts.
func (o Options) Validate() error {
	info, err := os.Stat(o.RepoPath)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeInvalidRepoPath, "repository path is not accessible", err).
			WithDetail("path", o.RepoPath)
	}
	if !info.IsDir() {
		return docerrors.New(docerrors.ErrCodeInvalidRepoPath, "repository path is not a directory", nil).
			WithDetail("path", o.RepoPath)
	}
	if o.MaxDepth < 0 {
		return docerrors.ConfigError("max depth must not be negative", nil)
	}

	if o.PullRequest.Enabled {
		if o.PullRequest.Token == "" {
			return docerrors.New(docerrors.ErrCodeMissingCredential, "pull requests need a GitHub token", nil).
				WithSuggestion("pass --github-token or set GITHUB_TOKEN")
		}
		if !vcs.ValidateRepoSlug(o.PullRequest.Repo) {
			return docerrors.ConfigError("pull requests need a GitHub repository in owner/repo form", nil).
				WithDetail("repo", o.PullRequest.Repo)
		}
	}
	return nil
}

func (o Options) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.RepoPath, name)
}

// CachePath is the absolute location of the fingerprint cache.
func (o Options) CachePath() string {
	d := o.withDefaults()
	return d.resolve(d.CacheFile)
}

// ContextPath is the absolute location of the context summary.
func (o Options) ContextPath() string {
	d := o.withDefaults()
	return d.resolve(d.ContextFile)
}
