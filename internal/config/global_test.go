package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(configDir, GlobalConfigFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/atc/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "atc", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if *cfg != (FileConfig{}) {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	writeConfig(t, tmpDir, `
runs_root: ~/atc-runs
ollama_url: http://gpu-box:11434
embedding_model: nomic-embed-text
embedding_dimensions: 768
arxiv_delay: 500ms
cache_entries: 0
`)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.RunsRoot != filepath.Join(home, "atc-runs") {
		t.Errorf("RunsRoot = %q, tilde not expanded", cfg.RunsRoot)
	}
	if cfg.OllamaURL != "http://gpu-box:11434" || cfg.EmbeddingModel != "nomic-embed-text" || cfg.EmbeddingDimensions != 768 {
		t.Errorf("cfg = %+v", cfg)
	}
	if time.Duration(cfg.ArxivDelay) != 500*time.Millisecond {
		t.Errorf("ArxivDelay = %v", time.Duration(cfg.ArxivDelay))
	}
	if cfg.CacheEntries == nil || *cfg.CacheEntries != 0 {
		t.Errorf("CacheEntries = %v, want explicit 0", cfg.CacheEntries)
	}

	// Cached: a rewritten file is not re-read.
	writeConfig(t, tmpDir, "embedding_model: other\n")
	again, _ := LoadGlobalConfig()
	if again.EmbeddingModel != "nomic-embed-text" {
		t.Error("expected cached config")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "runs_root: [unterminated"},
		{"bad duration", "arxiv_delay: soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			if _, err := LoadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~/runs", filepath.Join(home, "runs")},
		{"/abs/runs", "/abs/runs"},
		{"runs", "runs"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandTilde(tt.in); got != tt.want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
