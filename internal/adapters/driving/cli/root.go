// Package cli provides the haven command line interface. Commands are
// thin: they parse input, call the core services and format output.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	blobfile "github.com/haven-labs/haven/internal/adapters/driven/blob/file"
	configfile "github.com/haven-labs/haven/internal/adapters/driven/config/file"
	"github.com/haven-labs/haven/internal/adapters/driven/embedding/ollama"
	"github.com/haven-labs/haven/internal/adapters/driven/embedding/openai"
	enrichhttp "github.com/haven-labs/haven/internal/adapters/driven/enrichment/http"
	"github.com/haven-labs/haven/internal/adapters/driven/storage/sqlite"
	"github.com/haven-labs/haven/internal/core/ports/driven"
	"github.com/haven-labs/haven/internal/core/ports/driving"
	"github.com/haven-labs/haven/internal/core/services"
	"github.com/haven-labs/haven/internal/logger"
)

var version = "dev"

var (
	configPath string
	verbose    bool
)

// Services wired by initServices and consumed by the commands.
// Tests substitute these directly.
var (
	cfg            configfile.Config
	store          *sqlite.Store
	catalogService driving.CatalogService
	searchService  driving.SearchService
	embedPipeline  driving.EmbedPipeline
)

var rootCmd = &cobra.Command{
	Use:   "haven",
	Short: "Personal data plane: ingest, version and search your documents",
	Long: `Haven catalogues documents from any producer, versions them as
they change, deduplicates attachments by content, and serves hybrid
keyword + semantic search over the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.haven/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initServices builds the service graph from the configuration. Called
// by commands that touch the catalog; tests inject mocks instead.
func initServices() error {
	if catalogService != nil {
		return nil
	}

	var err error
	cfg, err = configfile.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err = sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening catalog store: %w", err)
	}

	blobs, err := blobfile.NewBlobStore(cfg.Storage.BlobDir)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	enricher, err := buildEnricher(cfg.Enrichment)
	if err != nil {
		return err
	}

	catalogService = services.NewCatalogService(store.CatalogStore(), blobs, enricher, nil)
	searchService = services.NewSearchService(store.CatalogStore(), store.SearchEngine(), store.VectorIndex(), embedder)
	embedPipeline = services.NewEmbedPipeline(services.PipelineConfig{
		Workers:         cfg.Pipeline.Workers,
		BatchSize:       cfg.Pipeline.BatchSize,
		PollInterval:    cfg.Pipeline.PollInterval,
		StaleAfter:      cfg.Pipeline.StaleAfter,
		SweepInterval:   cfg.Pipeline.SweepInterval,
		ProviderTimeout: cfg.Pipeline.ProviderTimeout,
		RatePerSecond:   cfg.Pipeline.RatePerSecond,
		Burst:           cfg.Pipeline.Burst,
	}, store.ChunkQueue(), embedder)

	return nil
}

// buildEmbedder returns nil when no provider is configured; search
// degrades to lexical-only and the worker refuses to start.
func buildEmbedder(c configfile.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch c.Provider {
	case "":
		return nil, nil
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    c.BaseURL,
			Model:      c.Model,
			Dimensions: c.Dimensions,
		}), nil
	case "openai":
		return openai.NewEmbeddingService(openai.Config{
			BaseURL:    c.BaseURL,
			APIKey:     c.APIKey,
			Model:      c.Model,
			Dimensions: c.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Provider)
	}
}

func buildEnricher(c configfile.EnrichmentConfig) (driven.EnrichmentService, error) {
	if c.BaseURL == "" {
		return nil, nil
	}
	return enrichhttp.NewEnrichmentService(enrichhttp.Config{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
	})
}

func closeServices() {
	if store != nil {
		store.Close()
		store = nil
	}
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}
