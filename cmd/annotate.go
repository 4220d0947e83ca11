package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/meysamhadeli/docai/annotator"
	"github.com/meysamhadeli/docai/config"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/embedding"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/internal/fileutil"
	"github.com/meysamhadeli/docai/models"
	"github.com/meysamhadeli/docai/orchestrator"
	"github.com/meysamhadeli/docai/providers"
	"github.com/meysamhadeli/docai/vcs"
	vcs_contracts "github.com/meysamhadeli/docai/vcs/contracts"
)

// annotateCmd: docai annotate
var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Add docstrings to the files that changed since the last run.",
	Long: `The 'annotate' subcommand discovers changed source files, stores a description of each one
in the repository's knowledge base, and then documents them folder by folder, deepest folders first.
Each folder batch is saved before the next one starts and can be opened as its own pull request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleAnnotateCommand(cmd)
	},
}

func init() {
	config.InitAnnotateFlags(annotateCmd)
	rootCmd.AddCommand(annotateCmd)
}

var spinner = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
	WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
	WithDelay(100).WithRemoveWhenDone(true)

func handleAnnotateCommand(cmd *cobra.Command) error {
	rootDependencies, err := handleRootCommand(cmd)
	if err != nil {
		return err
	}
	defer rootDependencies.Close()

	cfg := rootDependencies.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	manual := cfg.PipelineConfig.Manual
	if manual && !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return docerrors.ConfigError("manual review needs an interactive terminal", nil).
			WithSuggestion("run without --manual or attach a terminal")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repoPath := rootDependencies.RepoPath
	lock := fileutil.NewRunLock(filepath.Join(repoPath, ".docai"))
	acquired, err := lock.TryLock()
	if err != nil {
		return docerrors.New(docerrors.ErrCodeRunLocked, "failed to take the run lock", err)
	}
	if !acquired {
		return docerrors.New(docerrors.ErrCodeRunLocked, "another docai run is active in this repository", nil).
			WithDetail("lock", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	chatProvider, err := providers.ChooseProvider(cfg.AIProviderConfig, rootDependencies.TokenManagement)
	if err != nil {
		return docerrors.ConfigError("failed to set up the AI provider", err).
			WithSuggestion("set API_KEY or choose --provider ollama")
	}

	spinnerLoadIndex, _ := spinner.Start("Loading description index...")
	index := openIndex(cfg, repoPath)
	spinnerLoadIndex.Stop()
	if index != nil {
		defer func() { _ = index.Close() }()
	}

	pullRequest, versionControl, err := setupHandoff(ctx, cfg, repoPath)
	if err != nil {
		return err
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	opts := orchestrator.Options{
		RepoPath:        repoPath,
		MaxDepth:        cfg.PipelineConfig.MaxDepth,
		Manual:          manual,
		ModelTokenLimit: cfg.AIProviderConfig.MaxTokens,
		RetrievalK:      cfg.PipelineConfig.RetrievalK,
		Extensions:      cfg.PipelineConfig.Extensions,
		CacheFile:       cfg.PipelineConfig.CacheFile,
		ContextFile:     cfg.PipelineConfig.ContextFile,
		HeaderLine:      cfg.PipelineConfig.HeaderLine,
		NoCache:         noCache,
		PullRequest:     pullRequest,
	}

	deps := orchestrator.Dependencies{
		Annotator:      annotator.NewAnnotator(chatProvider, rootDependencies.Analyzer),
		Analyzer:       rootDependencies.Analyzer,
		VersionControl: versionControl,
		Confirmer:      orchestrator.AutoConfirmer{},
		Progress:       newBarProgress(),
	}
	if index != nil {
		deps.Index = index
	}
	if manual {
		deps.Confirmer = orchestrator.NewManualConfirmer(os.Stdin, os.Stdout, cfg.Theme)
		deps.Progress = linePrinter{}
	}

	fmt.Println(lipgloss.Info.Render(fmt.Sprintf("Annotating %s", repoPath)))
	summary, runErr := orchestrator.New(opts, deps).Run(ctx)

	printSummary(summary)
	rootDependencies.TokenManagement.DisplayTokens(cfg.AIProviderConfig.Provider, cfg.AIProviderConfig.Model)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Println(lipgloss.Yellow.Render("\n🔄 Interrupted, progress up to the last finished batch is saved."))
			return nil
		}
		return runErr
	}
	return nil
}

// openIndex opens the description index, falling back to static embeddings
// when the configured embedder cannot be built. A nil index disables retrieval.
func openIndex(cfg *config.Config, repoPath string) *embedding.HNSWIndex {
	embedder, err := embedding.NewEmbedder(*cfg.EmbeddingConfig)
	if err != nil {
		slog.Warn("embedding provider unavailable, using static embeddings", "provider", cfg.EmbeddingConfig.Provider, "error", err)
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Embedding provider unavailable (%v), using static embeddings", err)))
		embedder = embedding.NewCachedEmbedder(embedding.NewStaticEmbedder(), cfg.EmbeddingConfig.CacheSize)
	}

	indexDir := cfg.PipelineConfig.IndexDir
	if !filepath.IsAbs(indexDir) {
		indexDir = filepath.Join(repoPath, indexDir)
	}
	index, err := embedding.OpenHNSWIndex(embedding.DefaultIndexPath(indexDir), embedder)
	if err != nil {
		slog.Warn("description index unavailable, retrieval disabled", "error", err)
		return nil
	}
	return index
}

// setupHandoff resolves the pull request target and builds the git and GitHub clients.
func setupHandoff(ctx context.Context, cfg *config.Config, repoPath string) (orchestrator.PullRequestOptions, vcs_contracts.IVersionControl, error) {
	vcsConfig := cfg.VCSConfig
	options := orchestrator.PullRequestOptions{
		Enabled:      vcsConfig.PR != "",
		Repo:         vcsConfig.PR,
		Token:        vcsConfig.GithubToken,
		BranchName:   vcsConfig.BranchName,
		Name:         vcsConfig.PRName,
		TargetBranch: vcsConfig.TargetBranch,
	}
	if !options.Enabled {
		return options, nil, nil
	}

	git := vcs.NewGitOperations(repoPath)
	if err := git.CheckGitRepo(ctx); err != nil {
		return options, nil, docerrors.ConfigError("pull requests need a git repository", err)
	}

	if options.Repo == config.PROriginRemote {
		remote, err := git.RemoteURL(ctx)
		if err != nil {
			return options, nil, docerrors.ConfigError("cannot read the origin remote", err)
		}
		slug, err := vcs.ParseRepoSlug(remote)
		if err != nil {
			return options, nil, docerrors.ConfigError("cannot derive the GitHub repository from origin", err).
				WithSuggestion("pass --pr owner/repo")
		}
		options.Repo = slug
	}

	github := vcs.NewGitHubClient(ctx, vcsConfig.APIURL, options.Repo, options.Token)
	return options, vcs.NewVersionControl(git, github), nil
}

func printSummary(summary orchestrator.RunSummary) {
	data := pterm.TableData{
		{"Changed", "Described", "Annotated", "Rejected", "Skipped", "Failed", "Batches", "Pull requests"},
		{
			strconv.Itoa(summary.Changed),
			strconv.Itoa(summary.Described),
			strconv.Itoa(summary.Annotated),
			strconv.Itoa(summary.Rejected),
			strconv.Itoa(summary.Skipped),
			strconv.Itoa(summary.Failed + summary.DescribeFailed),
			strconv.Itoa(summary.Batches),
			strconv.Itoa(summary.PullRequests),
		},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

// barProgress shows one progress bar per batch.
type barProgress struct {
	bar *pterm.ProgressbarPrinter
}

func newBarProgress() *barProgress {
	return &barProgress{}
}

func (p *barProgress) StartBatch(batch models.Batch) {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(len(batch.Files)).
		WithTitle(fmt.Sprintf("Adding docstrings in '%s'", vcs.FolderLabel(batch.Folder))).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		p.bar = nil
		return
	}
	p.bar = bar
}

func (p *barProgress) FileDone(file string, outcome orchestrator.Outcome) {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *barProgress) EndBatch(batch models.Batch) {
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✔️ Batch '%s' saved (%d files)", vcs.FolderLabel(batch.Folder), len(batch.Files))))
}

// linePrinter reports progress as plain lines so it does not fight with review prompts.
type linePrinter struct{}

func (linePrinter) StartBatch(batch models.Batch) {
	fmt.Println(lipgloss.BoxStyle.Render(fmt.Sprintf("Folder '%s' - %d files", vcs.FolderLabel(batch.Folder), len(batch.Files))))
}

func (linePrinter) FileDone(file string, outcome orchestrator.Outcome) {
	switch outcome {
	case orchestrator.OutcomeAnnotated:
		fmt.Println(lipgloss.Green.Render("✔️ " + file))
	case orchestrator.OutcomeRejected:
		fmt.Println(lipgloss.Red.Render("❌ " + file + " rejected"))
	case orchestrator.OutcomeFailed:
		fmt.Println(lipgloss.Red.Render("⚠️ " + file + " failed, see the log"))
	default:
		fmt.Println(lipgloss.Gray.Render("- " + file + " unchanged"))
	}
}

func (linePrinter) EndBatch(batch models.Batch) {}
