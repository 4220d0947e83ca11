package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	annotator_contracts "github.com/meysamhadeli/docai/annotator/contracts"
	"github.com/meysamhadeli/docai/assembler"
	analyzer_contracts "github.com/meysamhadeli/docai/code_analyzer/contracts"
	"github.com/meysamhadeli/docai/context_store"
	embedding_contracts "github.com/meysamhadeli/docai/embedding/contracts"
	"github.com/meysamhadeli/docai/fingerprint"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/internal/fileutil"
	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/token_management"
	"github.com/meysamhadeli/docai/traverser"
	"github.com/meysamhadeli/docai/utils"
	"github.com/meysamhadeli/docai/vcs"
	vcs_contracts "github.com/meysamhadeli/docai/vcs/contracts"
)

// IProgress receives per-batch and per-file events for display.
type IProgress interface {
	StartBatch(batch models.Batch)
	FileDone(file string, outcome Outcome)
	EndBatch(batch models.Batch)
}

type noopProgress struct{}

func (noopProgress) StartBatch(models.Batch)  {}
func (noopProgress) FileDone(string, Outcome) {}
func (noopProgress) EndBatch(models.Batch)    {}

// Dependencies are the collaborators a run talks to.
type Dependencies struct {
	Annotator annotator_contracts.IAnnotator
	Analyzer  analyzer_contracts.ICodeAnalyzer
	// Index may be nil; retrieval then falls back to stored descriptions only.
	Index embedding_contracts.IEmbeddingIndex
	// VersionControl is required only when pull requests are enabled.
	VersionControl vcs_contracts.IVersionControl
	Confirmer      IConfirmer
	Progress       IProgress
}

// indexMembership is implemented by indexes that can report stored ids.
type indexMembership interface {
	Contains(id string) bool
}

// Orchestrator drives one run through INIT, DESCRIBE, DISPATCH and DONE.
type Orchestrator struct {
	opts      Options
	deps      Dependencies
	state     State
	now       func() time.Time
	cache     *fingerprint.Cache
	store     *context_store.Store
	assembler *assembler.Assembler
	summary   RunSummary
}

func New(opts Options, deps Dependencies) *Orchestrator {
	if deps.Confirmer == nil {
		deps.Confirmer = AutoConfirmer{}
	}
	if deps.Progress == nil {
		deps.Progress = noopProgress{}
	}
	opts = opts.withDefaults()
	return &Orchestrator{
		opts:      opts,
		deps:      deps,
		state:     StateInit,
		now:       time.Now,
		assembler: assembler.NewAssembler(deps.Index, opts.RetrievalK),
	}
}

// State returns the stage the run is in.
func (o *Orchestrator) State() State {
	return o.state
}

// Run processes every changed file and returns what happened. Only fatal
// problems and interruption are returned as errors.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	o.state = StateInit
	o.summary = RunSummary{}

	batches, changed, err := o.initialize()
	if err != nil {
		return o.summary, err
	}

	o.state = StateDescribe
	if err := o.describe(ctx, changed); err != nil {
		return o.summary, err
	}

	o.state = StateDispatch
	for _, batch := range batches {
		if len(batch.Files) == 0 {
			continue
		}
		if err := o.dispatch(ctx, batch); err != nil {
			return o.summary, err
		}
	}

	o.state = StateDone
	slog.Info("run finished",
		"changed", o.summary.Changed,
		"described", o.summary.Described,
		"annotated", o.summary.Annotated,
		"rejected", o.summary.Rejected,
		"skipped", o.summary.Skipped,
		"failed", o.summary.Failed,
		"batches", o.summary.Batches,
		"pull_requests", o.summary.PullRequests)
	return o.summary, nil
}

func (o *Orchestrator) initialize() ([]models.Batch, []string, error) {
	if err := o.opts.Validate(); err != nil {
		return nil, nil, err
	}
	if o.opts.PullRequest.Enabled && o.deps.VersionControl == nil {
		return nil, nil, docerrors.ConfigError("pull requests enabled without a version control client", nil)
	}

	root := o.opts.RepoPath
	cachePath := o.opts.CachePath()

	if o.opts.NoCache {
		if err := fingerprint.Reset(cachePath); err != nil {
			return nil, nil, docerrors.New(docerrors.ErrCodeFileWrite, "failed to reset fingerprint cache", err)
		}
		slog.Info("fingerprint cache reset", "path", cachePath)
	}

	cache, err := fingerprint.Load(cachePath)
	if err != nil {
		slog.Warn("fingerprint cache unreadable, treating every file as changed", "path", cachePath, "error", err)
		cache = fingerprint.New()
	}
	o.cache = cache

	store, err := context_store.Load(o.opts.ContextPath())
	if err != nil {
		corrupt := docerrors.New(docerrors.ErrCodeFileCorrupt, "context summary cannot be read", err).
			WithDetail("path", o.opts.ContextPath()).
			WithSuggestion("fix or move the file away before running again")
		corrupt.Severity = docerrors.SeverityFatal
		return nil, nil, corrupt
	}
	o.store = store

	matcher, err := utils.NewIgnoreMatcher(root)
	if err != nil {
		slog.Warn("ignore rules unavailable", "error", err)
	}

	files, err := traverser.Discover(root, o.opts.Extensions, matcher)
	if err != nil {
		return nil, nil, docerrors.New(docerrors.ErrCodeInvalidRepoPath, "failed to list repository files", err)
	}
	o.summary.Discovered = len(files)

	changed := o.cache.FilterChanged(root, files)
	o.summary.Changed = len(changed)

	partition, err := traverser.Partition(root, o.opts.MaxDepth)
	if err != nil {
		return nil, nil, docerrors.New(docerrors.ErrCodeInvalidRepoPath, "failed to partition repository", err)
	}
	batches := traverser.Assign(changed, partition)

	stats := o.cache.Stats()
	slog.Info("run initialized",
		"files", len(files),
		"changed", len(changed),
		"unchanged", stats.Unchanged,
		"unreadable", stats.Unreadable,
		"batches", len(batches),
		"context_entries", o.store.Len())
	return batches, changed, nil
}

// describe fills the knowledge base for changed files that have no
// description yet and makes sure every stored description is indexed.
func (o *Orchestrator) describe(ctx context.Context, changed []string) error {
	for _, file := range changed {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := o.store.Lookup(file); ok {
			continue
		}

		content, err := os.ReadFile(o.absPath(file))
		if err != nil {
			slog.Warn("skipping description, file unreadable", "file", file, "error", err)
			o.summary.DescribeFailed++
			continue
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}

		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.Debug("describing file", "file", file, "outline", o.deps.Analyzer.ProcessFile(file, content))
		}
		description, err := o.deps.Annotator.Describe(ctx, string(content))
		if err != nil {
			slog.Warn("failed to describe file", "file", file, "error", err)
			o.summary.DescribeFailed++
			continue
		}

		o.store.Append(models.ContextEntry{File: file, Description: description})
		o.summary.Described++
		o.indexDescription(ctx, file, description)
	}

	o.reconcileIndex(ctx)

	if o.summary.Described > 0 {
		if err := o.store.Persist(o.opts.ContextPath()); err != nil {
			slog.Error("failed to persist context summary", "error", err)
		}
	}
	o.saveIndex()
	return nil
}

func (o *Orchestrator) indexDescription(ctx context.Context, file string, description string) {
	if o.deps.Index == nil {
		return
	}
	tags := map[string]string{"file_type": "description", "file": file}
	if err := o.deps.Index.Insert(ctx, file, description, tags); err != nil {
		slog.Warn("failed to index description", "file", file, "error", err)
	}
}

// reconcileIndex inserts stored descriptions the index does not know about,
// for example after the index file was deleted.
func (o *Orchestrator) reconcileIndex(ctx context.Context) {
	membership, ok := o.deps.Index.(indexMembership)
	if !ok {
		return
	}
	restored := 0
	for _, entry := range o.store.Entries() {
		if ctx.Err() != nil {
			return
		}
		if membership.Contains(entry.File) {
			continue
		}
		o.indexDescription(ctx, entry.File, entry.Description)
		restored++
	}
	if restored > 0 {
		slog.Info("restored descriptions into the index", "count", restored)
	}
}

func (o *Orchestrator) saveIndex() {
	if o.deps.Index == nil {
		return
	}
	if err := o.deps.Index.Save(); err != nil {
		slog.Warn("failed to save embedding index", "error", err)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, batch models.Batch) error {
	o.summary.Batches++
	o.deps.Progress.StartBatch(batch)
	slog.Info("processing batch", "folder", batch.Folder, "depth", batch.Depth, "files", len(batch.Files))

	var applied []string
	var interrupted error
	for _, file := range batch.Files {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		outcome := o.annotateFile(ctx, file)
		o.summary.record(outcome)
		o.deps.Progress.FileDone(file, outcome)
		if outcome == OutcomeAnnotated {
			applied = append(applied, file)
		}
	}

	o.persist()
	o.deps.Progress.EndBatch(batch)

	if interrupted != nil {
		return interrupted
	}
	if o.opts.PullRequest.Enabled && len(applied) > 0 {
		o.handoff(ctx, batch, applied)
	}
	return nil
}

// annotateFile runs GENERATE, VALIDATE, APPLY and CACHE_UPDATE for one file.
func (o *Orchestrator) annotateFile(ctx context.Context, file string) Outcome {
	absPath := o.absPath(file)
	content, err := os.ReadFile(absPath)
	if err != nil {
		slog.Warn("skipping unreadable file", "file", file, "error", err)
		return OutcomeFailed
	}
	original := string(content)

	identifiers, err := o.deps.Analyzer.ExtractIdentifiers(file, content)
	if err != nil {
		slog.Debug("no identifiers extracted", "file", file, "error", err)
	}

	var storedDescription string
	if entry, ok := o.store.Lookup(file); ok {
		storedDescription = entry.Description
	}

	contextText := o.assembler.Assemble(ctx, assembler.Request{
		Target:            file,
		StoredDescription: storedDescription,
		Identifiers:       identifiers,
		TokenBudget:       o.opts.ModelTokenLimit - token_management.CountTokens(original),
	})

	outcome := OutcomeSkipped
	apply := func(newContent string) (bool, error) {
		if strings.TrimSpace(newContent) == "" {
			return false, nil
		}
		proposed := o.deps.Analyzer.EnsureHeader(newContent, o.opts.HeaderLine)
		if proposed == original {
			return false, nil
		}

		ok, err := o.deps.Confirmer.Confirm(ctx, models.ProposedChange{Path: file, Original: original, Proposed: proposed})
		if err != nil {
			return false, err
		}
		if !ok {
			outcome = OutcomeRejected
			return false, nil
		}

		if err := o.write(absPath, proposed); err != nil {
			return false, err
		}
		if _, err := o.cache.Refresh(o.opts.RepoPath, file); err != nil {
			slog.Warn("failed to rehash annotated file", "file", file, "error", err)
		}
		outcome = OutcomeAnnotated
		return true, nil
	}

	if _, err := o.deps.Annotator.Annotate(ctx, original, contextText, apply); err != nil {
		slog.Warn("failed to annotate file", "file", file, "error", err)
		return OutcomeFailed
	}
	if outcome == OutcomeSkipped {
		slog.Info("file left unchanged", "file", file)
	}
	return outcome
}

// write backs up the current file and replaces it with content.
func (o *Orchestrator) write(absPath string, content string) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return docerrors.IOError("failed to stat file before writing", err)
	}
	backup, err := fileutil.CreateBackup(absPath, o.now())
	if err != nil {
		return docerrors.New(docerrors.ErrCodeBackup, "failed to back up file", err)
	}
	if err := fileutil.WriteFileAtomically(absPath, []byte(content), info.Mode().Perm()); err != nil {
		return docerrors.New(docerrors.ErrCodeFileWrite, "failed to write annotated file", err)
	}
	slog.Debug("file annotated", "path", absPath, "backup", backup)
	return nil
}

// persist flushes both stores and the index at a batch boundary.
func (o *Orchestrator) persist() {
	if err := o.store.Persist(o.opts.ContextPath()); err != nil {
		slog.Error("failed to persist context summary", "error", err)
	}
	if err := o.cache.Commit(o.opts.CachePath()); err != nil {
		slog.Error("failed to persist fingerprint cache", "error", err)
	}
	o.saveIndex()
}

func (o *Orchestrator) handoff(ctx context.Context, batch models.Batch, applied []string) {
	pr := o.opts.PullRequest
	folder := vcs.FolderLabel(batch.Folder)

	ok, err := o.deps.Confirmer.ConfirmPullRequest(ctx, folder, applied)
	if err != nil || !ok {
		slog.Info("pull request skipped by user", "folder", folder)
		return
	}

	dirty, err := o.deps.VersionControl.HasUncommittedChanges(ctx, o.opts.RepoPath)
	if err != nil {
		slog.Warn("handoff failed", "folder", folder, "error", err)
		return
	}
	if !dirty {
		slog.Info("nothing to hand off", "folder", folder)
		return
	}

	branch := vcs.UniqueBranchName(pr.BranchName, batch.Folder)
	pushed, err := o.deps.VersionControl.CommitAndPush(ctx, o.opts.RepoPath, branch, vcs.CommitMessage(batch.Folder))
	if err != nil {
		slog.Warn("handoff failed", "folder", folder, "branch", branch, "error", err)
		return
	}
	if !pushed {
		slog.Info("nothing to commit", "folder", folder)
		return
	}

	opened, err := o.deps.VersionControl.OpenPullRequest(ctx,
		vcs.PullRequestTitle(pr.Name, batch.Folder),
		vcs.PullRequestBody(applied),
		branch,
		pr.TargetBranch)
	if err != nil {
		slog.Warn("failed to open pull request", "folder", folder, "branch", branch, "error", err)
		return
	}
	if opened {
		o.summary.PullRequests++
	}
}

func (o *Orchestrator) absPath(file string) string {
	return filepath.Join(o.opts.RepoPath, filepath.FromSlash(file))
}

// String renders the summary for logs.
func (s RunSummary) String() string {
	return fmt.Sprintf("changed=%d described=%d annotated=%d rejected=%d skipped=%d failed=%d batches=%d prs=%d",
		s.Changed, s.Described, s.Annotated, s.Rejected, s.Skipped, s.Failed, s.Batches, s.PullRequests)
}
