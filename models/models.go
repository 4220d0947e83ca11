package models

import (
	"path/filepath"
	"strings"
)

// FileRecord is the fingerprint of one repository file.
type FileRecord struct {
	Path        string
	ContentHash string
}

// ContextEntry is the stored natural-language description of one file.
type ContextEntry struct {
	File        string `json:"file"`
	Description string `json:"description"`
}

// Batch is a folder-scoped, depth-bounded group of files reviewed together.
type Batch struct {
	Depth  int
	Folder string
	Files  []string
}

// IsRoot reports whether the batch is the depth-0 catch-all.
func (b Batch) IsRoot() bool {
	return b.Depth == 0
}

// Snippet is one ranked result returned by the embedding index.
type Snippet struct {
	ID    string
	Text  string
	Score float32
	Tags  map[string]string
}

// ProposedChange is a generated replacement waiting for review.
type ProposedChange struct {
	Path     string
	Original string
	Proposed string
}

// NormalizePath turns an OS path into the repository-relative, slash-separated
// form used as a key by every persisted store.
func NormalizePath(path string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}
