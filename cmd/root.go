package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/ai"
	"github.com/xdmiq/jobmatch/internal/ai/gemini"
	"github.com/xdmiq/jobmatch/internal/checkpoint"
	"github.com/xdmiq/jobmatch/internal/filtering"
	"github.com/xdmiq/jobmatch/internal/logger"
	"github.com/xdmiq/jobmatch/internal/matching"
	"github.com/xdmiq/jobmatch/internal/secrets"
	"github.com/xdmiq/jobmatch/internal/store"
)

const (
	app = "jobmatch"

	defaultDatabasePath = "jobmatch.db"
)

type Config struct {
	Database *DatabaseConfig `mapstructure:"database"`
	Matching *MatchingConfig `mapstructure:"matching"`
	JobBoard *JobBoardConfig `mapstructure:"jobboard"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MatchingConfig struct {
	Limit             int      `mapstructure:"limit"`
	ExcludedCompanies []string `mapstructure:"excluded-companies"`
	ExcludeFile       string   `mapstructure:"exclude-file"`
}

type JobBoardConfig struct {
	URL        string `mapstructure:"url"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch generates and reviews longevity-weighted job matches for anonymous profiles",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("jobboard.api-key-file", "JOBBOARD_API_KEY_FILE"); err != nil {
		log.Fatalf("binding JOBBOARD_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	viper.SetDefault("database.path", defaultDatabasePath)
	viper.SetDefault("matching.limit", matching.DefaultLimit)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// A missing config file is fine, the defaults cover everything but
	// the AI section. A config file parsed with error is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Database == nil {
		config.Database = &DatabaseConfig{Path: defaultDatabasePath}
	}
	return config, nil
}

func newLogger() *zap.Logger {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return zl
}

// buildEngine opens the store and wires the matching engine with its
// collaborators. The caller owns closing the returned store. filters
// may be nil for commands that never generate matches.
func buildEngine(ctx context.Context, config *Config, zl *zap.Logger, filters []filtering.Filter) (*matching.Engine, *store.Store, error) {
	st, err := store.New(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	checkpoints, err := checkpoint.NewService(st.DB())
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	summarizer, err := newSummarizer(ctx, config.AI, zl)
	if err != nil {
		// The summary is opportunistic; a broken AI setup must not block
		// match generation.
		zl.Warn("running without ai summaries", zap.Error(err))
	}

	filterConfig := &filtering.Config{}
	if config.Matching != nil {
		filterConfig.ExcludedCompanies = config.Matching.ExcludedCompanies
		filterConfig.ExcludeFile = config.Matching.ExcludeFile
	}

	engine, err := matching.New(matching.Deps{
		Assessments:  st,
		Users:        st,
		Jobs:         st,
		Matches:      st,
		Checkpoints:  checkpoints,
		Summarizer:   summarizer,
		Filters:      filters,
		FilterConfig: filterConfig,
		Logger:       zl,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return engine, st, nil
}

// newSummarizer builds the optional Gemini summarizer. A disabled or
// absent AI section yields (nil, nil).
func newSummarizer(ctx context.Context, cfg *AIConfig, zl *zap.Logger) (ai.Summarizer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	aiLogger := logger.WithAIFields(zl, "gemini", cfg.Gemini.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, aiLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewSummarizer(generator, aiLogger, cfg.Gemini.MaxLogLength), nil
}
