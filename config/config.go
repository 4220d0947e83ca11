package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meysamhadeli/docai/context_store"
	"github.com/meysamhadeli/docai/embedding"
	"github.com/meysamhadeli/docai/fingerprint"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/internal/logging"
	"github.com/meysamhadeli/docai/providers"
	"github.com/meysamhadeli/docai/token_management"
	"github.com/meysamhadeli/docai/utils"
	"github.com/meysamhadeli/docai/vcs"
)

// PROriginRemote asks for the GitHub repository to be read from the origin remote.
const PROriginRemote = "origin"

// PipelineConfig controls discovery, batching and context assembly.
type PipelineConfig struct {
	MaxDepth    int      `mapstructure:"max_depth"`
	Manual      bool     `mapstructure:"manual"`
	RetrievalK  int      `mapstructure:"retrieval_k"`
	Extensions  []string `mapstructure:"extensions"`
	CacheFile   string   `mapstructure:"cache_file"`
	ContextFile string   `mapstructure:"context_file"`
	IndexDir    string   `mapstructure:"index_dir"`
	HeaderLine  string   `mapstructure:"header_line"`
}

// VCSConfig controls the per-batch pull request handoff.
type VCSConfig struct {
	// PR is an owner/repo slug, "origin" to derive it from the remote, or empty to disable.
	PR           string `mapstructure:"pr"`
	GithubToken  string `mapstructure:"github_token"`
	BranchName   string `mapstructure:"branch_name"`
	PRName       string `mapstructure:"pr_name"`
	TargetBranch string `mapstructure:"target_branch"`
	APIURL       string `mapstructure:"api_url"`
}

// Config represents the structure of the configuration file
type Config struct {
	Version          string                      `mapstructure:"version"`
	Theme            string                      `mapstructure:"theme"`
	AIProviderConfig *providers.AIProviderConfig `mapstructure:"ai_provider_config"`
	EmbeddingConfig  *embedding.Config           `mapstructure:"embedding_config"`
	PipelineConfig   *PipelineConfig             `mapstructure:"pipeline_config"`
	VCSConfig        *VCSConfig                  `mapstructure:"vcs_config"`
	LogConfig        *logging.Config             `mapstructure:"log_config"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version: "0.3.0",
	Theme:   utils.DefaultTheme,
	AIProviderConfig: &providers.AIProviderConfig{
		Provider:  "openai",
		BaseURL:   "",
		Model:     "gpt-4o-mini",
		MaxTokens: token_management.DefaultModelTokenLimit,
		ApiKey:    "",
	},
	EmbeddingConfig: &embedding.Config{
		Provider:  "openai",
		Model:     embedding.DefaultOpenAIModel,
		CacheSize: 1000,
	},
	PipelineConfig: &PipelineConfig{
		MaxDepth:    2,
		RetrievalK:  5,
		Extensions:  []string{".py"},
		CacheFile:   fingerprint.DefaultCacheFileName,
		ContextFile: context_store.DefaultContextFileName,
		IndexDir:    filepath.Join(".docai", "index"),
		HeaderLine:  "# Docstring generated by docai",
	},
	VCSConfig: &VCSConfig{
		BranchName:   vcs.DefaultBranchName,
		PRName:       vcs.DefaultPullRequestName,
		TargetBranch: vcs.DefaultTargetBranch,
		APIURL:       vcs.DefaultGitHubAPIURL,
	},
	LogConfig: &logging.Config{
		Level:     "info",
		MaxSizeMB: 10,
		MaxFiles:  5,
	},
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs initializes the configuration from file, flags, and environment variables, and returns the final config.
// cmd is the command being executed; its local flags are bound alongside the root's persistent flags.
func LoadConfigs(cmd *cobra.Command, cwd string) (*Config, error) {
	var config *Config

	viper.Reset()

	// Set default values using Viper
	setDefaults()

	// Automatically read environment variables
	viper.AutomaticEnv()

	// Explicitly bind environment variables to config keys
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, docerrors.ConfigError(fmt.Sprintf("error reading config file %s", cfgFile), err)
		}
	} else {
		// Look for docai-config.yaml or docai-config.json in the working directory
		viper.SetConfigName("docai-config")
		viper.AddConfigPath(cwd)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, docerrors.ConfigError("error reading config file", err)
			}
		}
	}

	// Bind CLI flags to override config values
	bindFlags(cmd)

	if err := viper.Unmarshal(&config); err != nil {
		return nil, docerrors.ConfigError("unable to decode configuration", err)
	}

	return config, nil
}

// ConfigFileUsed returns the config file viper read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("version", DefaultConfig.Version)
	viper.SetDefault("theme", DefaultConfig.Theme)

	viper.SetDefault("ai_provider_config.provider", DefaultConfig.AIProviderConfig.Provider)
	viper.SetDefault("ai_provider_config.base_url", DefaultConfig.AIProviderConfig.BaseURL)
	viper.SetDefault("ai_provider_config.model", DefaultConfig.AIProviderConfig.Model)
	viper.SetDefault("ai_provider_config.temperature", DefaultConfig.AIProviderConfig.Temperature)
	viper.SetDefault("ai_provider_config.max_tokens", DefaultConfig.AIProviderConfig.MaxTokens)
	viper.SetDefault("ai_provider_config.api_key", DefaultConfig.AIProviderConfig.ApiKey)

	viper.SetDefault("embedding_config.provider", DefaultConfig.EmbeddingConfig.Provider)
	viper.SetDefault("embedding_config.base_url", DefaultConfig.EmbeddingConfig.BaseURL)
	viper.SetDefault("embedding_config.model", DefaultConfig.EmbeddingConfig.Model)
	viper.SetDefault("embedding_config.api_key", DefaultConfig.EmbeddingConfig.APIKey)
	viper.SetDefault("embedding_config.dimensions", DefaultConfig.EmbeddingConfig.Dimensions)
	viper.SetDefault("embedding_config.cache_size", DefaultConfig.EmbeddingConfig.CacheSize)

	viper.SetDefault("pipeline_config.max_depth", DefaultConfig.PipelineConfig.MaxDepth)
	viper.SetDefault("pipeline_config.manual", DefaultConfig.PipelineConfig.Manual)
	viper.SetDefault("pipeline_config.retrieval_k", DefaultConfig.PipelineConfig.RetrievalK)
	viper.SetDefault("pipeline_config.extensions", DefaultConfig.PipelineConfig.Extensions)
	viper.SetDefault("pipeline_config.cache_file", DefaultConfig.PipelineConfig.CacheFile)
	viper.SetDefault("pipeline_config.context_file", DefaultConfig.PipelineConfig.ContextFile)
	viper.SetDefault("pipeline_config.index_dir", DefaultConfig.PipelineConfig.IndexDir)
	viper.SetDefault("pipeline_config.header_line", DefaultConfig.PipelineConfig.HeaderLine)

	viper.SetDefault("vcs_config.pr", DefaultConfig.VCSConfig.PR)
	viper.SetDefault("vcs_config.github_token", DefaultConfig.VCSConfig.GithubToken)
	viper.SetDefault("vcs_config.branch_name", DefaultConfig.VCSConfig.BranchName)
	viper.SetDefault("vcs_config.pr_name", DefaultConfig.VCSConfig.PRName)
	viper.SetDefault("vcs_config.target_branch", DefaultConfig.VCSConfig.TargetBranch)
	viper.SetDefault("vcs_config.api_url", DefaultConfig.VCSConfig.APIURL)

	viper.SetDefault("log_config.level", DefaultConfig.LogConfig.Level)
	viper.SetDefault("log_config.file", DefaultConfig.LogConfig.FilePath)
	viper.SetDefault("log_config.max_size_mb", DefaultConfig.LogConfig.MaxSizeMB)
	viper.SetDefault("log_config.max_files", DefaultConfig.LogConfig.MaxFiles)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv() {
	_ = viper.BindEnv("theme", "THEME")
	_ = viper.BindEnv("ai_provider_config.provider", "PROVIDER")
	_ = viper.BindEnv("ai_provider_config.base_url", "BASE_URL")
	_ = viper.BindEnv("ai_provider_config.model", "MODEL")
	_ = viper.BindEnv("ai_provider_config.temperature", "TEMPERATURE")
	_ = viper.BindEnv("ai_provider_config.max_tokens", "MAX_TOKENS")
	_ = viper.BindEnv("ai_provider_config.api_key", "API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("embedding_config.provider", "EMBEDDING_PROVIDER")
	_ = viper.BindEnv("embedding_config.base_url", "EMBEDDING_BASE_URL")
	_ = viper.BindEnv("embedding_config.model", "EMBEDDING_MODEL")
	_ = viper.BindEnv("embedding_config.api_key", "EMBEDDING_API_KEY", "API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("embedding_config.dimensions", "EMBEDDING_DIMENSIONS")
	_ = viper.BindEnv("vcs_config.github_token", "GITHUB_TOKEN")
	_ = viper.BindEnv("log_config.level", "LOG_LEVEL")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(cmd *cobra.Command) {
	persistent := cmd.Root().PersistentFlags()
	_ = viper.BindPFlag("theme", persistent.Lookup("theme"))
	_ = viper.BindPFlag("ai_provider_config.provider", persistent.Lookup("provider"))
	_ = viper.BindPFlag("ai_provider_config.base_url", persistent.Lookup("base_url"))
	_ = viper.BindPFlag("ai_provider_config.model", persistent.Lookup("model"))
	_ = viper.BindPFlag("ai_provider_config.temperature", persistent.Lookup("temperature"))
	_ = viper.BindPFlag("ai_provider_config.api_key", persistent.Lookup("api_key"))
	_ = viper.BindPFlag("embedding_config.provider", persistent.Lookup("embedding_provider"))
	_ = viper.BindPFlag("embedding_config.model", persistent.Lookup("embedding_model"))
	_ = viper.BindPFlag("log_config.level", persistent.Lookup("log_level"))

	local := cmd.Flags()
	bindLocal := func(key, flag string) {
		if f := local.Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
	bindLocal("ai_provider_config.max_tokens", "max-tokens")
	bindLocal("pipeline_config.max_depth", "max-depth")
	bindLocal("pipeline_config.manual", "manual")
	bindLocal("vcs_config.pr", "pr")
	bindLocal("vcs_config.github_token", "github-token")
	bindLocal("vcs_config.branch_name", "branch-name")
	bindLocal("vcs_config.pr_name", "pr-name")
	bindLocal("vcs_config.target_branch", "target-branch")
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().String("theme", DefaultConfig.Theme, "Set the chroma style used to highlight diffs in manual review (e.g., 'dracula', 'monokai', 'github').")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")

	// AI Provider configuration
	rootCmd.PersistentFlags().String("provider", DefaultConfig.AIProviderConfig.Provider, "The name of the AI provider (e.g., 'openai', 'ollama').")
	rootCmd.PersistentFlags().String("base_url", DefaultConfig.AIProviderConfig.BaseURL, "The base URL of AI Provider (defaults to the provider's public endpoint).")
	rootCmd.PersistentFlags().String("model", DefaultConfig.AIProviderConfig.Model, "The name of the model used for descriptions and docstrings, such as 'gpt-4o-mini'.")
	rootCmd.PersistentFlags().Float32("temperature", 0, "Adjusts the AI model's creativity (0-1).")
	rootCmd.PersistentFlags().String("api_key", DefaultConfig.AIProviderConfig.ApiKey, "The API key used to authenticate with the AI service provider.")

	// Embedding configuration
	rootCmd.PersistentFlags().String("embedding_provider", DefaultConfig.EmbeddingConfig.Provider, "The embedding provider for the description index ('openai', 'ollama', 'static').")
	rootCmd.PersistentFlags().String("embedding_model", DefaultConfig.EmbeddingConfig.Model, "The embedding model, such as 'text-embedding-3-large'.")

	rootCmd.PersistentFlags().String("log_level", DefaultConfig.LogConfig.Level, "Log level for the run log (debug, info, warn, error).")
}

// InitAnnotateFlags registers the flags of the annotate command.
func InitAnnotateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("path", "", "Path of the repository to annotate (defaults to the current directory).")
	flags.Int("max-depth", DefaultConfig.PipelineConfig.MaxDepth, "Deepest folder level that gets its own batch and pull request.")
	flags.Bool("manual", DefaultConfig.PipelineConfig.Manual, "Review every change as a diff before it is written.")
	flags.Int("max-tokens", DefaultConfig.AIProviderConfig.MaxTokens, "Prompt token limit of the model; bounds the assembled context.")
	flags.Bool("no-cache", false, "Delete the fingerprint cache first so every file is processed.")
	flags.String("pr", "", "Open a pull request per batch on this GitHub repository (owner/repo). Without a value the origin remote is used.")
	flags.Lookup("pr").NoOptDefVal = PROriginRemote
	flags.String("github-token", "", "GitHub token used for pull requests (or set GITHUB_TOKEN).")
	flags.String("branch-name", DefaultConfig.VCSConfig.BranchName, "Base name of the branches created for pull requests.")
	flags.String("pr-name", DefaultConfig.VCSConfig.PRName, "Title of the pull requests.")
	flags.String("target-branch", DefaultConfig.VCSConfig.TargetBranch, "Branch the pull requests target.")
}

// Validate rejects configurations that must stop the run before any work starts.
func (c *Config) Validate() error {
	if c.PipelineConfig == nil || c.AIProviderConfig == nil || c.EmbeddingConfig == nil || c.VCSConfig == nil {
		return docerrors.ConfigError("configuration is incomplete", nil)
	}
	if c.PipelineConfig.MaxDepth < 0 {
		return docerrors.ConfigError("max depth must not be negative", nil).
			WithDetail("max_depth", fmt.Sprint(c.PipelineConfig.MaxDepth))
	}

	switch strings.ToLower(c.AIProviderConfig.Provider) {
	case "openai", "azure-openai", "openrouter", "ollama":
	default:
		return docerrors.ConfigError(fmt.Sprintf("unsupported AI provider '%s'", c.AIProviderConfig.Provider), nil)
	}

	if c.VCSConfig.PR != "" {
		if c.VCSConfig.GithubToken == "" {
			return docerrors.New(docerrors.ErrCodeMissingCredential, "pull requests need a GitHub token", nil).
				WithSuggestion("pass --github-token or set GITHUB_TOKEN")
		}
		if c.VCSConfig.PR != PROriginRemote && !vcs.ValidateRepoSlug(c.VCSConfig.PR) {
			return docerrors.ConfigError(fmt.Sprintf("invalid GitHub repository '%s', expected owner/repo", c.VCSConfig.PR), nil)
		}
	}
	return nil
}
