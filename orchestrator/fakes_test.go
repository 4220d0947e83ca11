package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/meysamhadeli/docai/annotator/contracts"
	"github.com/meysamhadeli/docai/models"
)

type fakeAnnotator struct {
	mu        sync.Mutex
	described []string
	annotated []string
	failOn    string
}

func (f *fakeAnnotator) Describe(ctx context.Context, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.described = append(f.described, content)
	if f.failOn != "" && strings.Contains(content, f.failOn) {
		return "", errors.New("describe failed")
	}
	return "Describes " + strings.TrimSpace(content), nil
}

func (f *fakeAnnotator) Annotate(ctx context.Context, source string, contextText string, apply contracts.ApplyFn) (bool, error) {
	f.mu.Lock()
	f.annotated = append(f.annotated, source)
	fail := f.failOn != "" && strings.Contains(source, f.failOn)
	f.mu.Unlock()
	if fail {
		return false, errors.New("annotate failed")
	}
	return apply("\"\"\"Module docs.\"\"\"\n" + source)
}

type fakeIndex struct {
	inserted map[string]string
	saves    int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{inserted: make(map[string]string)}
}

func (f *fakeIndex) Insert(ctx context.Context, id string, text string, tags map[string]string) error {
	f.inserted[id] = text
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, text string, k int, tagFilter map[string]string) ([]models.Snippet, error) {
	return nil, nil
}

func (f *fakeIndex) Save() error  { f.saves++; return nil }
func (f *fakeIndex) Close() error { return nil }

// membershipIndex also reports which ids it holds.
type membershipIndex struct {
	*fakeIndex
}

func (m membershipIndex) Contains(id string) bool {
	_, ok := m.inserted[id]
	return ok
}

type rejectingConfirmer struct {
	reject map[string]bool
	asked  []string
}

func (r *rejectingConfirmer) Confirm(ctx context.Context, change models.ProposedChange) (bool, error) {
	r.asked = append(r.asked, change.Path)
	return !r.reject[change.Path], nil
}

func (r *rejectingConfirmer) ConfirmPullRequest(ctx context.Context, folder string, files []string) (bool, error) {
	return !r.reject[folder], nil
}

type commitCall struct {
	branch  string
	message string
}

type pullCall struct {
	title string
	body  string
	head  string
	base  string
}

type fakeVCS struct {
	commits     []commitCall
	pulls       []pullCall
	statusCalls int
	clean       bool
	failFirst   bool
	prFailFirst bool
}

func (f *fakeVCS) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	f.statusCalls++
	return !f.clean, nil
}

func (f *fakeVCS) CommitAndPush(ctx context.Context, repoPath string, branch string, message string) (bool, error) {
	f.commits = append(f.commits, commitCall{branch: branch, message: message})
	if f.failFirst && len(f.commits) == 1 {
		return false, errors.New("push rejected")
	}
	return true, nil
}

func (f *fakeVCS) OpenPullRequest(ctx context.Context, title string, body string, head string, base string) (bool, error) {
	f.pulls = append(f.pulls, pullCall{title: title, body: body, head: head, base: base})
	if f.prFailFirst && len(f.pulls) == 1 {
		return false, errors.New("422 Validation Failed")
	}
	return true, nil
}
