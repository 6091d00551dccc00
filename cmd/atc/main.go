// Package main provides the atc CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/arxiv"
	"github.com/maxonary/ai-trend-clustering/internal/config"
	"github.com/maxonary/ai-trend-clustering/internal/embedding"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	configPath  string

	// cfg is the effective configuration, loaded before every command.
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "atc",
	Short: "Cluster and explore AI research trends from arXiv",
	Long: `atc turns recent arXiv abstracts into an explorable map of research topics.

Pipeline stages (each runnable on its own):
  - ingest: fetch abstracts for a category from the arXiv API
  - embed: embed every abstract with an Ollama embedding model
  - cluster: group embeddings into topics with ranked terms
  - render-3d / render-trend: write the topic map and trend charts as HTML

'atc run' executes all stages into a new run directory and 'atc serve'
starts the interactive explorer over the saved runs.
All commands output JSON by default.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/atc/config.yml)")
	rootCmd.Version = Version
}

// setup loads .env, the logger and the configuration.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	loaded, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	cfg = loaded
	return nil
}

func newArxivClient() *arxiv.Client {
	return arxiv.NewClient(
		arxiv.WithBaseURL(cfg.ArxivBaseURL),
		arxiv.WithPageSize(cfg.ArxivPageSize),
		arxiv.WithDelay(cfg.ArxivDelay),
		arxiv.WithLogger(logger),
	)
}

func newOllamaProvider() *embedding.OllamaProvider {
	return embedding.NewOllamaProvider(
		embedding.WithBaseURL(cfg.OllamaURL),
		embedding.WithModel(cfg.EmbeddingModel),
		embedding.WithDimensions(cfg.EmbeddingDimensions),
	)
}

func newGenerator(provider embedding.Provider, progress embedding.ProgressFunc) *embedding.Generator {
	opts := []embedding.GeneratorOption{
		embedding.WithConcurrency(cfg.EmbedConcurrency),
		embedding.WithLogger(logger),
	}
	if progress != nil {
		opts = append(opts, embedding.WithProgress(progress))
	}
	return embedding.NewGenerator(provider, opts...)
}

func newStore() *runstore.Store {
	return runstore.New(cfg.RunsRoot)
}

// mustValidateOllama checks that Ollama is running and the embedding model
// is available.
func mustValidateOllama(ctx context.Context, provider *embedding.OllamaProvider) {
	if err := provider.IsAvailable(ctx); err != nil {
		exitWithError(ExitUpstreamError, "Ollama is not running at %s\n\nStart Ollama with 'ollama serve' or install from https://ollama.ai", cfg.OllamaURL)
	}

	hasModel, err := provider.HasModel(ctx)
	if err != nil {
		exitWithError(ExitUpstreamError, "checking model availability: %v", err)
	}
	if !hasModel {
		exitWithError(ExitModelNotFound, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", provider.ModelName(), provider.ModelName())
	}
}

// progressPrinter reports embedding progress on stderr in human mode.
func progressPrinter() embedding.ProgressFunc {
	if !humanOutput {
		return nil
	}
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rEmbedding... %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
