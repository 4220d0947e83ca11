package vcs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultBranchName prefixes every handoff branch.
	DefaultBranchName = "docai"
	// DefaultPullRequestName is used in pull request titles.
	DefaultPullRequestName = "Add docstrings"
	// DefaultTargetBranch is the base branch pull requests are opened against.
	DefaultTargetBranch = "main"

	rootFolderLabel = "root"
)

var (
	invalidBranchChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	githubRemote       = regexp.MustCompile(`github\.com[:/](.+?)/(.+?)(?:\.git)?$`)
	repoSlug           = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// SanitizeBranchName flattens path separators and replaces every run of
// characters git would reject with an underscore.
func SanitizeBranchName(name string) string {
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	return invalidBranchChars.ReplaceAllString(name, "_")
}

// FolderLabel names a batch folder for branches and titles.
func FolderLabel(folder string) string {
	if folder == "" || folder == "." {
		return rootFolderLabel
	}
	return folder
}

// UniqueBranchName builds the handoff branch for one batch folder.
func UniqueBranchName(branchName string, folder string) string {
	if branchName == "" {
		branchName = DefaultBranchName
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", SanitizeBranchName(branchName+"-"+FolderLabel(folder)), suffix)
}

func CommitMessage(folder string) string {
	return fmt.Sprintf("[Docstring-AI] ✨ Add docstrings for %s", FolderLabel(folder))
}

func PullRequestTitle(prName string, folder string) string {
	if prName == "" {
		prName = DefaultPullRequestName
	}
	return fmt.Sprintf("[Docstring-AI] %s `%s`", prName, FolderLabel(folder))
}

func PullRequestBody(files []string) string {
	var builder strings.Builder
	builder.WriteString("Automated docstring additions.\n\n**Files Changed:**\n")
	for _, file := range files {
		builder.WriteString(fmt.Sprintf("- `%s`\n", file))
	}
	return builder.String()
}

// ParseRepoSlug extracts owner/repo from a GitHub remote URL.
func ParseRepoSlug(remoteURL string) (string, error) {
	match := githubRemote.FindStringSubmatch(strings.TrimSpace(remoteURL))
	if match == nil {
		return "", fmt.Errorf("remote %q is not a GitHub repository", remoteURL)
	}
	return match[1] + "/" + match[2], nil
}

// ValidateRepoSlug reports whether slug has the owner/repo form.
func ValidateRepoSlug(slug string) bool {
	return repoSlug.MatchString(slug)
}
