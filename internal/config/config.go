// Package config provides configuration loading and structs for brocc.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Workers  int            `yaml:"workers"`
	Server   ServerConfig   `yaml:"server"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	Assign   AssignConfig   `yaml:"assign"`
	Output   OutputConfig   `yaml:"output"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TaxonomyConfig selects and tunes the taxonomy source. A local database is
// used when DatabasePath exists; otherwise lookups go to NCBI EUtils.
type TaxonomyConfig struct {
	DatabasePath   string `yaml:"database_path"`
	EUtilsURL      string `yaml:"eutils_url"`
	APIKey         string `yaml:"api_key"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
	// CachePath, when set, persists resolved lookups between runs.
	CachePath string `yaml:"cache_path"`
}

// AssignConfig holds the voting thresholds.
type AssignConfig struct {
	// Amplicon selects species and genus identity presets: ITS or 18S.
	Amplicon            string             `yaml:"amplicon"`
	MinID               float64            `yaml:"min_id"`
	MinCover            float64            `yaml:"min_cover"`
	MinSpeciesID        float64            `yaml:"min_species_id"`
	MinGenusID          float64            `yaml:"min_genus_id"`
	MinWinningVotes     int                `yaml:"min_winning_votes"`
	ConsensusThresholds map[string]float64 `yaml:"consensus_thresholds"`
	GenericPrefixes     []string           `yaml:"generic_prefixes"`
}

// OutputConfig holds result file settings.
type OutputConfig struct {
	Directory string   `yaml:"directory"`
	Formats   []string `yaml:"formats"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Default returns a config with every default applied and paths expanded
// relative to the home directory.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths("")
	return cfg
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

func (cfg *Config) expandPaths(configDir string) {
	cfg.Taxonomy.DatabasePath = expandPath(cfg.Taxonomy.DatabasePath, configDir)
	if cfg.Taxonomy.CachePath != "" {
		cfg.Taxonomy.CachePath = expandPath(cfg.Taxonomy.CachePath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	} else if strings.HasPrefix(path, "./") || path == "." {
		if configDir == "" {
			configDir, _ = os.Getwd()
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
