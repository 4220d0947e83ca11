package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/token_management"
)

type fakeIndex struct {
	results map[string][]models.Snippet
	err     error
	errFor  map[string]error
	queries []string
	filters []map[string]string
}

func (f *fakeIndex) Insert(ctx context.Context, id string, text string, tags map[string]string) error {
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, text string, k int, tagFilter map[string]string) ([]models.Snippet, error) {
	f.queries = append(f.queries, text)
	f.filters = append(f.filters, tagFilter)
	if f.err != nil {
		return nil, f.err
	}
	if err, ok := f.errFor[text]; ok {
		return nil, err
	}
	results := f.results[text]
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeIndex) Save() error  { return nil }
func (f *fakeIndex) Close() error { return nil }

func snippet(id string, score float32) models.Snippet {
	return models.Snippet{ID: id, Text: "about " + id, Score: score}
}

func TestAssembleDescriptionFirst(t *testing.T) {
	index := &fakeIndex{results: map[string][]models.Snippet{
		"Parser": {snippet("lib/parser.py", 0.9)},
	}}
	a := NewAssembler(index, 5)

	out := a.Assemble(context.Background(), Request{
		Target:            "app.py",
		StoredDescription: "Entry point.",
		Identifiers:       []string{"Parser"},
		TokenBudget:       1000,
	})

	assert.True(t, strings.HasPrefix(out, "Description of app.py:\nEntry point."))
	assert.Contains(t, out, "Related file lib/parser.py:\nabout lib/parser.py")
	require.Len(t, index.filters, 1)
	assert.Equal(t, "description", index.filters[0]["file_type"])
}

func TestAssembleDescriptionIgnoresBudget(t *testing.T) {
	index := &fakeIndex{results: map[string][]models.Snippet{
		"X": {snippet("x.py", 0.9)},
	}}
	a := NewAssembler(index, 5)

	long := strings.Repeat("word ", 100)
	out := a.Assemble(context.Background(), Request{
		Target:            "app.py",
		StoredDescription: long,
		Identifiers:       []string{"X"},
		TokenBudget:       1,
	})

	assert.Contains(t, out, strings.TrimSpace(long))
	assert.NotContains(t, out, "x.py")
}

func TestAssembleRespectsBudget(t *testing.T) {
	var snippets []models.Snippet
	for i, id := range []string{"a.py", "b.py", "c.py", "d.py"} {
		s := snippet(id, 1-float32(i)*0.1)
		s.Text = "Loads settings for " + id + " and validates every field before use."
		snippets = append(snippets, s)
	}
	index := &fakeIndex{results: map[string][]models.Snippet{"Q": snippets}}
	a := NewAssembler(index, 10)

	budget := token_management.CountTokens(formatDescription("main.py", "Main.")) +
		token_management.CountTokens(formatSnippet(snippets[0])) +
		token_management.CountTokens(formatSnippet(snippets[1])) +
		token_management.CountTokens(formatSnippet(snippets[2])) - 1
	out := a.Assemble(context.Background(), Request{
		Target:            "main.py",
		StoredDescription: "Main.",
		Identifiers:       []string{"Q"},
		TokenBudget:       budget,
	})

	assert.LessOrEqual(t, token_management.CountTokens(out), budget)
	assert.Contains(t, out, "a.py")
	assert.Contains(t, out, "b.py")
	assert.NotContains(t, out, "c.py")
	assert.NotContains(t, out, "d.py")
}

func TestAssembleStopsAtFirstOverflow(t *testing.T) {
	big := snippet("big.py", 0.9)
	big.Text = strings.Repeat("Parses the manifest and resolves every dependency. ", 20)
	small := snippet("small.py", 0.5)
	index := &fakeIndex{results: map[string][]models.Snippet{"Q": {big, small}}}
	a := NewAssembler(index, 5)

	budget := token_management.CountTokens(formatSnippet(big)) - 1
	require.LessOrEqual(t, token_management.CountTokens(formatSnippet(small)), budget)

	out := a.Assemble(context.Background(), Request{Target: "t.py", Identifiers: []string{"Q"}, TokenBudget: budget})
	assert.Equal(t, "", out)
}

func TestAssembleDeduplicatesAndRanks(t *testing.T) {
	index := &fakeIndex{results: map[string][]models.Snippet{
		"First":  {snippet("shared.py", 0.4), snippet("one.py", 0.7)},
		"Second": {snippet("shared.py", 0.8), snippet("two.py", 0.7)},
	}}
	a := NewAssembler(index, 5)

	out := a.Assemble(context.Background(), Request{
		Target:      "t.py",
		Identifiers: []string{"First", "Second"},
		TokenBudget: 1000,
	})

	assert.Equal(t, 1, strings.Count(out, "Related file shared.py"))
	shared := strings.Index(out, "shared.py")
	one := strings.Index(out, "one.py")
	two := strings.Index(out, "two.py")
	assert.Less(t, shared, one)
	assert.Less(t, one, two, "equal scores keep query order")
}

func TestAssembleDropsTarget(t *testing.T) {
	index := &fakeIndex{results: map[string][]models.Snippet{
		"Q": {snippet("pkg/self.py", 0.99), snippet("pkg/other.py", 0.5)},
	}}
	a := NewAssembler(index, 5)

	out := a.Assemble(context.Background(), Request{Target: "pkg/self.py", Identifiers: []string{"Q"}, TokenBudget: 1000})
	assert.NotContains(t, out, "Related file pkg/self.py")
	assert.Contains(t, out, "pkg/other.py")
}

func TestAssembleDegradesOnIndexError(t *testing.T) {
	a := NewAssembler(&fakeIndex{err: errors.New("index down")}, 5)

	out := a.Assemble(context.Background(), Request{
		Target:            "t.py",
		StoredDescription: "Kept.",
		Identifiers:       []string{"Q"},
		TokenBudget:       1000,
	})
	assert.Equal(t, formatDescription("t.py", "Kept."), out)

	empty := a.Assemble(context.Background(), Request{Target: "t.py", Identifiers: []string{"Q"}, TokenBudget: 1000})
	assert.Equal(t, "", empty)
}

func TestAssembleKeepsResultsWhenOneQueryFails(t *testing.T) {
	index := &fakeIndex{
		results: map[string][]models.Snippet{
			"First": {snippet("one.py", 0.6)},
			"Third": {snippet("three.py", 0.9)},
		},
		errFor: map[string]error{"Second": errors.New("timeout")},
	}
	a := NewAssembler(index, 5)

	out := a.Assemble(context.Background(), Request{
		Target:            "t.py",
		StoredDescription: "Kept.",
		Identifiers:       []string{"First", "Second", "Third"},
		TokenBudget:       1000,
	})

	assert.Equal(t, []string{"First", "Second", "Third"}, index.queries)
	assert.True(t, strings.HasPrefix(out, formatDescription("t.py", "Kept.")))
	assert.Contains(t, out, "Related file one.py")
	assert.Contains(t, out, "Related file three.py")
	assert.Less(t, strings.Index(out, "three.py"), strings.Index(out, "one.py"))
}

func TestAssembleWithoutIndexOrIdentifiers(t *testing.T) {
	a := NewAssembler(nil, 0)
	out := a.Assemble(context.Background(), Request{Target: "t.py", StoredDescription: "D", Identifiers: []string{"Q"}, TokenBudget: 10})
	assert.Equal(t, formatDescription("t.py", "D"), out)

	index := &fakeIndex{}
	a = NewAssembler(index, 3)
	a.Assemble(context.Background(), Request{Target: "t.py", TokenBudget: 10})
	assert.Empty(t, index.queries)
}
