package context_store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/meysamhadeli/docai/internal/fileutil"
	"github.com/meysamhadeli/docai/models"
)

// DefaultContextFileName is the context summary written at the repository root.
const DefaultContextFileName = "context_summary.json"

// Store is the append-only knowledge base of per-file descriptions.
// Entries keep insertion order; byPath indexes them so lookups stay O(1)
// without changing what a linear scan would return.
type Store struct {
	mu      sync.RWMutex
	entries []models.ContextEntry
	byPath  map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{byPath: make(map[string]int)}
}

// Load reads the context summary. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	store := New()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context summary %s: %w", path, err)
	}
	if len(data) == 0 {
		return store, nil
	}

	var entries []models.ContextEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode context summary %s: %w", path, err)
	}

	for _, entry := range entries {
		store.appendLocked(entry)
	}
	return store, nil
}

// Lookup returns the entry stored for path, matched on the normalized form.
func (s *Store) Lookup(path string) (models.ContextEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byPath[models.NormalizePath(path)]
	if !ok {
		return models.ContextEntry{}, false
	}
	return s.entries[idx], true
}

// Append adds entry unless one already exists for its path.
// It reports whether the entry was inserted.
func (s *Store) Append(entry models.ContextEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry)
}

func (s *Store) appendLocked(entry models.ContextEntry) bool {
	entry.File = models.NormalizePath(entry.File)
	if _, exists := s.byPath[entry.File]; exists {
		return false
	}
	s.byPath[entry.File] = len(s.entries)
	s.entries = append(s.entries, entry)
	return true
}

// Entries returns a copy of all entries in insertion order.
func (s *Store) Entries() []models.ContextEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ContextEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Persist rewrites the whole context summary file.
func (s *Store) Persist(path string) error {
	s.mu.RLock()
	entries := s.entries
	if entries == nil {
		entries = []models.ContextEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode context summary: %w", err)
	}

	if err := fileutil.WriteFileAtomically(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write context summary %s: %w", path, err)
	}
	return nil
}
