package traverser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/utils"
)

// RootFolder names the depth-0 catch-all batch.
const RootFolder = "."

// DefaultExtensions is used when no extension is configured.
var DefaultExtensions = []string{".py"}

type sizedFile struct {
	path string
	size int64
}

// Discover lists the candidate source files under root as repository-relative
// slash paths, smallest first. Hidden and default-ignored directories are never
// entered, and matcher rules are applied to both files and directories.
func Discover(root string, extensions []string, matcher *utils.IgnoreMatcher) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = true
	}

	var found []sizedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = models.NormalizePath(rel)

		if d.IsDir() {
			if rel == "" {
				return nil
			}
			if utils.IsIgnoredDir(d.Name()) || matcher.IsIgnored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !wanted[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		if utils.IsDefaultIgnored(rel) || matcher.IsIgnored(rel, false) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		found = append(found, sizedFile{path: rel, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].size != found[j].size {
			return found[i].size < found[j].size
		}
		return found[i].path < found[j].path
	})

	files := make([]string, len(found))
	for i, f := range found {
		files[i] = f.path
	}
	return files, nil
}

// Partition records one empty batch per directory at depth <= maxDepth, plus the
// root at depth 0. Deeper directories are covered by their ancestor at maxDepth.
// Batches come back deepest first, then in lexicographic folder order.
func Partition(root string, maxDepth int) ([]models.Batch, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	folders := map[string]int{RootFolder: 0}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = models.NormalizePath(rel)
		if rel == "" {
			return nil
		}
		if utils.IsIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}

		depth := Depth(rel)
		if depth > maxDepth {
			// Everything below is clamped to the ancestor already recorded.
			return filepath.SkipDir
		}
		folders[rel] = depth
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	batches := make([]models.Batch, 0, len(folders))
	for folder, depth := range folders {
		batches = append(batches, models.Batch{Depth: depth, Folder: folder})
	}
	SortBatches(batches)
	return batches, nil
}

// SortBatches orders batches by descending depth, breaking ties by folder path.
func SortBatches(batches []models.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].Depth != batches[j].Depth {
			return batches[i].Depth > batches[j].Depth
		}
		return batches[i].Folder < batches[j].Folder
	})
}

// Depth counts the path segments of a slash-separated folder below the root.
func Depth(folder string) int {
	folder = models.NormalizePath(folder)
	if folder == "" {
		return 0
	}
	return strings.Count(folder, "/") + 1
}

// Assign distributes the changed files over the batches in a single stable pass.
// Each batch claims every unclaimed file under its folder, keeping input order,
// and the root batch takes whatever is left. A root batch is appended when the
// input has none, so every file ends up in exactly one batch.
func Assign(changed []string, batches []models.Batch) []models.Batch {
	ordered := make([]models.Batch, 0, len(batches)+1)
	hasRoot := false
	for _, b := range batches {
		if isRootFolder(b.Folder) {
			if hasRoot {
				continue
			}
			hasRoot = true
			b.Folder = RootFolder
			b.Depth = 0
		}
		b.Files = nil
		ordered = append(ordered, b)
	}
	if !hasRoot {
		ordered = append(ordered, models.Batch{Depth: 0, Folder: RootFolder})
	}
	SortBatches(ordered)

	claimed := make([]bool, len(changed))
	for i := range ordered {
		prefix := ""
		if !isRootFolder(ordered[i].Folder) {
			prefix = models.NormalizePath(ordered[i].Folder) + "/"
		}
		for j, file := range changed {
			if claimed[j] {
				continue
			}
			if prefix == "" || strings.HasPrefix(models.NormalizePath(file), prefix) {
				ordered[i].Files = append(ordered[i].Files, file)
				claimed[j] = true
			}
		}
	}
	return ordered
}

func isRootFolder(folder string) bool {
	return folder == RootFolder || models.NormalizePath(folder) == ""
}
