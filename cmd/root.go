package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meysamhadeli/docai/code_analyzer"
	contracts_analyzer "github.com/meysamhadeli/docai/code_analyzer/contracts"
	"github.com/meysamhadeli/docai/config"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/internal/logging"
	"github.com/meysamhadeli/docai/token_management"
	contracts_token "github.com/meysamhadeli/docai/token_management/contracts"
)

// RootDependencies is what every subcommand needs before it starts working.
type RootDependencies struct {
	Config          *config.Config
	Cwd             string
	RepoPath        string
	TokenManagement contracts_token.ITokenManagement
	Analyzer        contracts_analyzer.ICodeAnalyzer
	closeLogs       func()
}

// Close flushes the run log.
func (d *RootDependencies) Close() {
	if d.closeLogs != nil {
		d.closeLogs()
	}
}

var rootCmd = &cobra.Command{
	Use:   "docai",
	Short: "docai incrementally adds docstrings to a repository, batch by batch.",
	Long: `docai finds the source files that changed since its last run, describes them into a
persistent knowledge base, and asks an AI model to document each one with context retrieved
from descriptions of related files. Changes are grouped per folder and can be opened as one
pull request per batch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if version, _ := cmd.Flags().GetBool("version"); version {
			fmt.Println(lipgloss.BlueSky.Render(fmt.Sprintf("docai version %s", config.DefaultConfig.Version)))
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// handleRootCommand loads the configuration and installs the run logger.
func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInvalidRepoPath, "failed to read working directory", err)
	}

	repoPath := cwd
	if f := cmd.Flags().Lookup("path"); f != nil && f.Value.String() != "" {
		repoPath = f.Value.String()
	}
	repoPath, err = filepath.Abs(repoPath)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInvalidRepoPath, "invalid repository path", err)
	}

	cfg, err := config.LoadConfigs(cmd, cwd)
	if err != nil {
		return nil, err
	}

	logConfig := *cfg.LogConfig
	if logConfig.FilePath == "" {
		logConfig.FilePath = logging.DefaultLogPath(repoPath)
	}
	logger, closeLogs, err := logging.Setup(logConfig)
	if err != nil {
		return nil, docerrors.ConfigError("failed to set up logging", err)
	}
	slog.SetDefault(logger)
	slog.Debug("configuration loaded", "config_file", config.ConfigFileUsed(), "repo", repoPath)

	return &RootDependencies{
		Config:          cfg,
		Cwd:             cwd,
		RepoPath:        repoPath,
		TokenManagement: token_management.NewTokenManager(),
		Analyzer:        code_analyzer.NewCodeAnalyzer(),
		closeLogs:       closeLogs,
	}, nil
}

// Execute runs the root command and exits non-zero on fatal errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		var docErr *docerrors.DocError
		if errors.As(err, &docErr) && docErr.Suggestion != "" {
			fmt.Println(lipgloss.Yellow.Render(docErr.Suggestion))
		}
		os.Exit(1)
	}
}
