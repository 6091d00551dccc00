package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults fill whatever the file and environment leave unset.
const (
	DefaultRunsRoot            = "runs"
	DefaultOllamaURL           = "http://localhost:11434"
	DefaultEmbeddingModel      = "all-minilm:l6-v2"
	DefaultEmbeddingDimensions = 384
	DefaultEmbedConcurrency    = 4
	DefaultArxivBaseURL        = "http://export.arxiv.org/api/query"
	DefaultArxivPageSize       = 100
	DefaultArxivDelay          = 3 * time.Second
	DefaultListenAddr          = "127.0.0.1:8501"
	DefaultCacheEntries        = 256
)

// Environment variables that override the file.
const (
	EnvRunsRoot       = "ATC_RUNS_ROOT"
	EnvOllamaURL      = "ATC_OLLAMA_URL"
	EnvEmbeddingModel = "ATC_EMBEDDING_MODEL"
	EnvArxivBaseURL   = "ATC_ARXIV_BASE_URL"
	EnvListenAddr     = "ATC_LISTEN_ADDR"
	EnvCacheEntries   = "ATC_CACHE_ENTRIES"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the effective configuration.
type Config struct {
	RunsRoot            string        `json:"runs_root" yaml:"runs_root"`
	OllamaURL           string        `json:"ollama_url" yaml:"ollama_url"`
	EmbeddingModel      string        `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingDimensions int           `json:"embedding_dimensions" yaml:"embedding_dimensions"`
	EmbedConcurrency    int           `json:"embed_concurrency" yaml:"embed_concurrency"`
	ArxivBaseURL        string        `json:"arxiv_base_url" yaml:"arxiv_base_url"`
	ArxivPageSize       int           `json:"arxiv_page_size" yaml:"arxiv_page_size"`
	ArxivDelay          time.Duration `json:"arxiv_delay" yaml:"-"`
	ListenAddr          string        `json:"listen_addr" yaml:"listen_addr"`
	CacheEntries        int           `json:"cache_entries" yaml:"cache_entries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RunsRoot:            DefaultRunsRoot,
		OllamaURL:           DefaultOllamaURL,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		EmbedConcurrency:    DefaultEmbedConcurrency,
		ArxivBaseURL:        DefaultArxivBaseURL,
		ArxivPageSize:       DefaultArxivPageSize,
		ArxivDelay:          DefaultArxivDelay,
		ListenAddr:          DefaultListenAddr,
		CacheEntries:        DefaultCacheEntries,
	}
}

// Load returns the effective configuration: defaults, overlaid by the
// config file at path (the global file when empty), overlaid by the
// environment.
func Load(path string) (Config, error) {
	var (
		file *FileConfig
		err  error
	)
	if path == "" {
		file, err = LoadGlobalConfig()
	} else {
		file, err = LoadFile(path)
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.apply(file)
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(f *FileConfig) {
	if f.RunsRoot != "" {
		c.RunsRoot = f.RunsRoot
	}
	if f.OllamaURL != "" {
		c.OllamaURL = f.OllamaURL
	}
	if f.EmbeddingModel != "" {
		c.EmbeddingModel = f.EmbeddingModel
	}
	if f.EmbeddingDimensions != 0 {
		c.EmbeddingDimensions = f.EmbeddingDimensions
	}
	if f.EmbedConcurrency != 0 {
		c.EmbedConcurrency = f.EmbedConcurrency
	}
	if f.ArxivBaseURL != "" {
		c.ArxivBaseURL = f.ArxivBaseURL
	}
	if f.ArxivPageSize != 0 {
		c.ArxivPageSize = f.ArxivPageSize
	}
	if f.ArxivDelay != 0 {
		c.ArxivDelay = time.Duration(f.ArxivDelay)
	}
	if f.ListenAddr != "" {
		c.ListenAddr = f.ListenAddr
	}
	if f.CacheEntries != nil {
		c.CacheEntries = *f.CacheEntries
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvRunsRoot, &c.RunsRoot)
	str(EnvOllamaURL, &c.OllamaURL)
	str(EnvEmbeddingModel, &c.EmbeddingModel)
	str(EnvArxivBaseURL, &c.ArxivBaseURL)
	str(EnvListenAddr, &c.ListenAddr)

	if v, ok := lookup(EnvCacheEntries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvCacheEntries, v)
		}
		c.CacheEntries = n
	}
	c.RunsRoot = ExpandTilde(c.RunsRoot)
	return nil
}

// Validate checks the effective configuration.
func (c Config) Validate() error {
	for _, f := range []struct{ name, raw string }{
		{"ollama_url", c.OllamaURL},
		{"arxiv_base_url", c.ArxivBaseURL},
	} {
		u, err := url.Parse(f.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalidConfig, f.name, f.raw)
		}
	}
	switch {
	case c.EmbeddingDimensions < 1:
		return fmt.Errorf("%w: embedding_dimensions must be positive", ErrInvalidConfig)
	case c.EmbedConcurrency < 1:
		return fmt.Errorf("%w: embed_concurrency must be positive", ErrInvalidConfig)
	case c.ArxivPageSize < 1:
		return fmt.Errorf("%w: arxiv_page_size must be positive", ErrInvalidConfig)
	case c.ArxivDelay < 0:
		return fmt.Errorf("%w: arxiv_delay must not be negative", ErrInvalidConfig)
	case c.CacheEntries < 0:
		return fmt.Errorf("%w: cache_entries must not be negative", ErrInvalidConfig)
	case c.RunsRoot == "":
		return fmt.Errorf("%w: runs_root is empty", ErrInvalidConfig)
	}
	return nil
}

// YAML renders the configuration in config file form.
func (c Config) YAML() (string, error) {
	out := struct {
		Config     `yaml:",inline"`
		ArxivDelay string `yaml:"arxiv_delay"`
	}{c, c.ArxivDelay.String()}
	data, err := yaml.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
