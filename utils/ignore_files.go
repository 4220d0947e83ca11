package utils

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName holds docai-specific ignore patterns, in .gitignore syntax.
const IgnoreFileName = ".docai-ignore"

// defaultIgnoredDirs are directory names never descended into.
var defaultIgnoredDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	".docai":       true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

// defaultIgnoredSuffixes are file suffixes never treated as sources.
var defaultIgnoredSuffixes = []string{
	".bak",
	".bkp",
	".tmp",
	".log",
	".pyc",
	".exe",
	".dll",
	".so",
}

// IsDefaultIgnored reports whether a slash-separated relative path falls under
// the built-in ignore rules: hidden or vendored directories, backups and binaries.
func IsDefaultIgnored(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i, part := range parts {
		if part == "" || part == "." {
			continue
		}
		isLast := i == len(parts)-1
		if !isLast && (defaultIgnoredDirs[part] || strings.HasPrefix(part, ".")) {
			return true
		}
		if isLast {
			lower := strings.ToLower(part)
			for _, suffix := range defaultIgnoredSuffixes {
				if strings.HasSuffix(lower, suffix) {
					return true
				}
			}
		}
	}
	return false
}

// IsIgnoredDir reports whether a directory name should be skipped entirely.
func IsIgnoredDir(name string) bool {
	return defaultIgnoredDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

type nestedMatcher struct {
	matcher *ignore.GitIgnore
	baseDir string
}

// IgnoreMatcher combines every .gitignore under the root with the root .docai-ignore.
type IgnoreMatcher struct {
	matchers []nestedMatcher
}

// NewIgnoreMatcher compiles the ignore files found under root.
// Unreadable ignore files are skipped.
func NewIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}

	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, IgnoreFileName)); err == nil {
		m.matchers = append(m.matchers, nestedMatcher{matcher: gi})
	}

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}

		gi, err := ignore.CompileIgnoreFile(p)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return nil
		}
		if rel == "." {
			rel = ""
		}
		m.matchers = append(m.matchers, nestedMatcher{matcher: gi, baseDir: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewIgnoreMatcherFromLines builds a root-level matcher from inline patterns.
func NewIgnoreMatcherFromLines(lines ...string) *IgnoreMatcher {
	return &IgnoreMatcher{matchers: []nestedMatcher{{matcher: ignore.CompileIgnoreLines(lines...)}}}
}

// IsIgnored checks a slash-separated path relative to the root.
func (m *IgnoreMatcher) IsIgnored(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	for _, nm := range m.matchers {
		target := relPath
		if nm.baseDir != "" {
			if !strings.HasPrefix(relPath, nm.baseDir+"/") {
				continue
			}
			target = strings.TrimPrefix(relPath, nm.baseDir+"/")
		}
		if isDir {
			target = path.Clean(target) + "/"
		}
		if nm.matcher.MatchesPath(target) {
			return true
		}
	}
	return false
}
