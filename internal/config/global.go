// Package config handles the global configuration file and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents configuration stored in ~/.config/atc/config.yml.
// Zero fields are unset.
type FileConfig struct {
	RunsRoot            string   `yaml:"runs_root,omitempty"`
	OllamaURL           string   `yaml:"ollama_url,omitempty"`
	EmbeddingModel      string   `yaml:"embedding_model,omitempty"`
	EmbeddingDimensions int      `yaml:"embedding_dimensions,omitempty"`
	EmbedConcurrency    int      `yaml:"embed_concurrency,omitempty"`
	ArxivBaseURL        string   `yaml:"arxiv_base_url,omitempty"`
	ArxivPageSize       int      `yaml:"arxiv_page_size,omitempty"`
	ArxivDelay          Duration `yaml:"arxiv_delay,omitempty"`
	ListenAddr          string   `yaml:"listen_addr,omitempty"`
	CacheEntries        *int     `yaml:"cache_entries,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("3s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "atc"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded config file.
var globalConfigCache *FileConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/atc/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*FileConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	cfg, err := LoadFile(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	globalConfigCache = cfg
	return cfg, nil
}

// LoadFile reads a config file. A missing file yields an empty config.
func LoadFile(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.RunsRoot != "" {
		cfg.RunsRoot = ExpandTilde(cfg.RunsRoot)
	}
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
