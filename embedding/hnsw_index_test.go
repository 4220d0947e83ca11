package embedding

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var descriptionTags = map[string]string{"file_type": "description"}

func tagsFor(file string) map[string]string {
	return map[string]string{"file_type": "description", "file": file}
}

func openTestIndex(t *testing.T, dir string, embedder *countingEmbedder) *HNSWIndex {
	t.Helper()
	idx, err := OpenHNSWIndex(DefaultIndexPath(dir), embedder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHNSWIndex_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, t.TempDir(), newCountingEmbedder())

	require.NoError(t, idx.Insert(ctx, "db/repository.py", "Repository loads and saves user records in the database", tagsFor("db/repository.py")))
	require.NoError(t, idx.Insert(ctx, "web/routes.py", "HTTP routes render templates for the dashboard", tagsFor("web/routes.py")))
	require.NoError(t, idx.Insert(ctx, "notes", "database repository records", map[string]string{"file_type": "note"}))

	snippets, err := idx.Query(ctx, "database repository records", 5, descriptionTags)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)

	assert.Equal(t, "db/repository.py", snippets[0].ID)
	for i, s := range snippets {
		assert.Equal(t, "description", s.Tags["file_type"], "tag filter must exclude other entries")
		if i > 0 {
			assert.LessOrEqual(t, s.Score, snippets[i-1].Score)
		}
	}
}

func TestHNSWIndex_QueryLimitsToK(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, t.TempDir(), newCountingEmbedder())

	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		require.NoError(t, idx.Insert(ctx, name+".py", "module "+name+" handles "+name+" parsing", tagsFor(name+".py")))
	}

	snippets, err := idx.Query(ctx, "parsing module", 2, descriptionTags)
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestHNSWIndex_ReinsertReplacesText(t *testing.T) {
	ctx := context.Background()
	embedder := newCountingEmbedder()
	idx := openTestIndex(t, t.TempDir(), embedder)

	require.NoError(t, idx.Insert(ctx, "a.py", "first description of parsing", tagsFor("a.py")))
	require.NoError(t, idx.Insert(ctx, "a.py", "first description of parsing", tagsFor("a.py")))
	assert.Equal(t, 1, embedder.Calls(), "identical text is not embedded twice")

	require.NoError(t, idx.Insert(ctx, "a.py", "second description about rendering", tagsFor("a.py")))
	assert.Equal(t, 1, idx.Len())

	snippets, err := idx.Query(ctx, "rendering", 5, descriptionTags)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "second description about rendering", snippets[0].Text)
}

func TestHNSWIndex_EmptyInputs(t *testing.T) {
	ctx := context.Background()
	embedder := newCountingEmbedder()
	idx := openTestIndex(t, t.TempDir(), embedder)

	require.NoError(t, idx.Insert(ctx, "a.py", "", tagsFor("a.py")))
	assert.Equal(t, 0, idx.Len())

	snippets, err := idx.Query(ctx, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, snippets)
	assert.Equal(t, 0, embedder.Calls())
}

func TestHNSWIndex_SaveAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := OpenHNSWIndex(DefaultIndexPath(dir), newCountingEmbedder())
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, "a.py", "parses configuration files", tagsFor("a.py")))
	require.NoError(t, idx.Insert(ctx, "b.py", "renders html templates", tagsFor("b.py")))
	require.NoError(t, idx.Save())
	require.NoError(t, idx.Close())

	_, err = os.Stat(DefaultIndexPath(dir) + ".meta")
	require.NoError(t, err)

	reopened := openTestIndex(t, dir, newCountingEmbedder())
	assert.Equal(t, 2, reopened.Len())
	assert.True(t, reopened.Contains("a.py"))

	snippets, err := reopened.Query(ctx, "configuration files", 1, descriptionTags)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "a.py", snippets[0].ID)
}

func TestHNSWIndex_ModelChangeStartsFresh(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := OpenHNSWIndex(DefaultIndexPath(dir), newCountingEmbedder())
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, "a.py", "parses configuration files", tagsFor("a.py")))
	require.NoError(t, idx.Save())
	require.NoError(t, idx.Close())

	other := newCountingEmbedder()
	other.model = "other-model"
	other.dims = 64

	reopened := openTestIndex(t, dir, other)
	assert.Equal(t, 0, reopened.Len())

	require.NoError(t, reopened.Insert(ctx, "a.py", "parses configuration files", tagsFor("a.py")))
	require.NoError(t, reopened.Save())
}

func TestHNSWIndex_EmbedFailureIsExternal(t *testing.T) {
	embedder := newCountingEmbedder()
	embedder.err = errEmbed
	idx := openTestIndex(t, t.TempDir(), embedder)

	err := idx.Insert(context.Background(), "a.py", "text", tagsFor("a.py"))
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, docerrors.GetCode(err))
	assert.False(t, docerrors.IsFatal(err))
}

func TestHNSWIndex_SaveWithoutChangesWritesNothing(t *testing.T) {
	dir := t.TempDir()
	idx := openTestIndex(t, dir, newCountingEmbedder())
	require.NoError(t, idx.Save())

	_, err := os.Stat(filepath.Join(dir, DefaultIndexFileName+".meta"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveIndex(t *testing.T) {
	dir := t.TempDir()
	idx := openTestIndex(t, dir, newCountingEmbedder())
	require.NoError(t, idx.Insert(context.Background(), "a.py", "alpha module", tagsFor("a.py")))
	require.NoError(t, idx.Save())

	removed, err := RemoveIndex(DefaultIndexPath(dir))
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = os.Stat(DefaultIndexPath(dir) + ".meta")
	assert.True(t, os.IsNotExist(err))

	removed, err = RemoveIndex(DefaultIndexPath(dir))
	require.NoError(t, err)
	assert.False(t, removed)
}
