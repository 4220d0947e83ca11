package traverser

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestExampleA(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "a")
	writeFile(t, root, "pkg/b.py", "b")
	writeFile(t, root, "pkg/sub/c.py", "c")

	batches, err := Partition(root, 1)
	require.NoError(t, err)

	assigned := Assign([]string{"a.py", "pkg/b.py", "pkg/sub/c.py"}, batches)
	require.Len(t, assigned, 2)

	assert.Equal(t, "pkg", assigned[0].Folder)
	assert.Equal(t, 1, assigned[0].Depth)
	assert.Equal(t, []string{"pkg/b.py", "pkg/sub/c.py"}, assigned[0].Files)

	assert.Equal(t, RootFolder, assigned[1].Folder)
	assert.Equal(t, 0, assigned[1].Depth)
	assert.Equal(t, []string{"a.py"}, assigned[1].Files)
}

func TestPartition_OrderAndClamp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zeta/x.py", "")
	writeFile(t, root, "alpha/one/two/three/y.py", "")
	writeFile(t, root, "alpha/beta/z.py", "")
	writeFile(t, root, ".hidden/h.py", "")

	batches, err := Partition(root, 2)
	require.NoError(t, err)

	var got []string
	for _, b := range batches {
		got = append(got, fmt.Sprintf("%d:%s", b.Depth, b.Folder))
	}
	assert.Equal(t, []string{"2:alpha/beta", "2:alpha/one", "1:alpha", "1:zeta", "0:."}, got)
}

func TestPartition_NegativeDepthOnlyRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/b.py", "")

	batches, err := Partition(root, -3)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].IsRoot())
}

func TestPartition_MissingRoot(t *testing.T) {
	_, err := Partition(filepath.Join(t.TempDir(), "missing"), 1)
	assert.Error(t, err)
}

func TestAssign_EveryFileExactlyOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dirs := []string{"", "a", "a/b", "a/b/c", "a/bb", "d", "d/e/f/g"}

	for maxDepth := 0; maxDepth <= 4; maxDepth++ {
		root := t.TempDir()
		var changed []string
		for i := 0; i < 40; i++ {
			dir := dirs[rng.Intn(len(dirs))]
			rel := fmt.Sprintf("f%d.py", i)
			if dir != "" {
				rel = dir + "/" + rel
			}
			writeFile(t, root, rel, "")
			changed = append(changed, rel)
		}

		batches, err := Partition(root, maxDepth)
		require.NoError(t, err)
		assigned := Assign(changed, batches)

		seen := map[string]int{}
		prevDepth := int(^uint(0) >> 1)
		for _, b := range assigned {
			assert.LessOrEqual(t, b.Depth, prevDepth, "depth must not increase")
			prevDepth = b.Depth
			assert.LessOrEqual(t, b.Depth, maxDepth)
			for _, f := range b.Files {
				seen[f]++
				if !b.IsRoot() {
					assert.True(t, strings.HasPrefix(f, b.Folder+"/"))
				}
			}
		}
		assert.Len(t, seen, len(changed))
		for f, n := range seen {
			assert.Equal(t, 1, n, "file %s assigned %d times", f, n)
		}
	}
}

func TestAssign_PreservesInputOrderAndAddsRoot(t *testing.T) {
	batches := []models.Batch{{Depth: 1, Folder: "pkg"}}
	assigned := Assign([]string{"pkg/z.py", "top.py", "pkg/a.py", "other/q.py"}, batches)

	require.Len(t, assigned, 2)
	assert.Equal(t, []string{"pkg/z.py", "pkg/a.py"}, assigned[0].Files)
	assert.Equal(t, RootFolder, assigned[1].Folder)
	assert.Equal(t, []string{"top.py", "other/q.py"}, assigned[1].Files)
}

func TestAssign_SiblingPrefixesDoNotOverlap(t *testing.T) {
	batches := []models.Batch{{Depth: 1, Folder: "pkg"}, {Depth: 1, Folder: "pkg2"}, {Depth: 0, Folder: RootFolder}}
	assigned := Assign([]string{"pkg2/x.py", "pkg/y.py"}, batches)

	assert.Equal(t, []string{"pkg/y.py"}, assigned[0].Files)
	assert.Equal(t, []string{"pkg2/x.py"}, assigned[1].Files)
	assert.Empty(t, assigned[2].Files)
}

func TestDiscover_SizeOrderAndIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.py", strings.Repeat("x", 100))
	writeFile(t, root, "pkg/small.py", "x")
	writeFile(t, root, "pkg/mid.py", strings.Repeat("x", 10))
	writeFile(t, root, "pkg/also_mid.py", strings.Repeat("y", 10))
	writeFile(t, root, "notes.txt", "ignored by extension")
	writeFile(t, root, ".venv/lib/site.py", "hidden")
	writeFile(t, root, "build/gen.py", "default ignored")
	writeFile(t, root, "vendor/third.py", "gitignored")
	writeFile(t, root, "pkg/mid.py.20240101000000.bak", "backup")
	writeFile(t, root, ".gitignore", "vendor/\n")

	matcher, err := utils.NewIgnoreMatcher(root)
	require.NoError(t, err)

	files, err := Discover(root, nil, matcher)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/small.py", "pkg/also_mid.py", "pkg/mid.py", "big.py"}, files)
}

func TestDiscover_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "app.PY", "print()")
	writeFile(t, root, "index.ts", "")

	files, err := Discover(root, []string{"go", ".py"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "app.PY"}, files)
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth("."))
	assert.Equal(t, 0, Depth(""))
	assert.Equal(t, 1, Depth("pkg"))
	assert.Equal(t, 3, Depth("a/b/c"))
}
