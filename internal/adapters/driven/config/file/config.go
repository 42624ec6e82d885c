// Package file loads and saves the Haven configuration as a TOML file
// under the haven home directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full Haven configuration.
type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
}

// StorageConfig locates the catalog database and blob directory.
type StorageConfig struct {
	// DataDir holds the SQLite database (default ~/.haven/data).
	DataDir string `toml:"data_dir"`

	// BlobDir holds attachment bytes (default ~/.haven/blobs).
	BlobDir string `toml:"blob_dir"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai" or "" to disable embeddings.
	Provider string `toml:"provider"`

	// Model overrides the provider's default model.
	Model string `toml:"model"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates hosted providers.
	APIKey string `toml:"api_key"`

	// Dimensions overrides the model's default vector size.
	Dimensions int `toml:"dimensions"`
}

// EnrichmentConfig points at the optional enrichment endpoint.
type EnrichmentConfig struct {
	// BaseURL enables enrichment when set.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates the endpoint.
	APIKey string `toml:"api_key"`
}

// PipelineConfig tunes the embedding workers.
type PipelineConfig struct {
	Workers         int           `toml:"workers"`
	BatchSize       int           `toml:"batch_size"`
	PollInterval    time.Duration `toml:"poll_interval"`
	StaleAfter      time.Duration `toml:"stale_after"`
	SweepInterval   time.Duration `toml:"sweep_interval"`
	ProviderTimeout time.Duration `toml:"provider_timeout"`
	RatePerSecond   float64       `toml:"rate_per_second"`
	Burst           int           `toml:"burst"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default 127.0.0.1:8787).
	Addr string `toml:"addr"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Provider: "ollama",
		},
		Pipeline: PipelineConfig{
			Workers:         4,
			BatchSize:       8,
			PollInterval:    2 * time.Second,
			StaleAfter:      10 * time.Minute,
			SweepInterval:   time.Minute,
			ProviderTimeout: 30 * time.Second,
			RatePerSecond:   10,
			Burst:           20,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// DefaultPath returns ~/.haven/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".haven", "config.toml"), nil
}

// Load reads the configuration at path, layering it over the defaults.
// A missing file yields the defaults. An empty path uses DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating the directory.
// An empty path uses DefaultPath.
func Save(cfg Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
