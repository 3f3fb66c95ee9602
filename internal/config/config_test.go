package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/brocc/internal/taxon"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
workers: 8
server:
  host: "127.0.0.1"
  port: 9000
taxonomy:
  database_path: "/data/taxonomy.db"
  api_key: "k"
assign:
  amplicon: ITS
  min_winning_votes: 3
  consensus_thresholds:
    genus: 0.5
output:
  formats: [standard, jsonl]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Workers != 8 || cfg.Taxonomy.DatabasePath != "/data/taxonomy.db" || cfg.Taxonomy.APIKey != "k" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	opts, err := cfg.AssignOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.MinSpeciesID != 95.2 || opts.MinGenusID != 83.05 {
		t.Errorf("ITS preset not applied: %+v", opts)
	}
	if opts.MinWinningVotes != 3 || opts.MinID != 80 || opts.MinCover != 0.7 {
		t.Errorf("unexpected thresholds: %+v", opts)
	}
	if opts.Consensus[taxon.Genus] != 0.5 || opts.Consensus[taxon.Class] != 0.8 {
		t.Errorf("consensus thresholds not merged over defaults: %v", opts.Consensus)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
taxonomy:
  database_path: "./data/taxonomy.db"
  cache_path: "./data/cache.json"
watch:
  directories: ["./runs"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "taxonomy.db"); cfg.Taxonomy.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Taxonomy.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "cache.json"); cfg.Taxonomy.CachePath != want {
		t.Errorf("cache_path = %s, want %s", cfg.Taxonomy.CachePath, want)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "runs") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if !filepath.IsAbs(cfg.Taxonomy.DatabasePath) || !strings.HasSuffix(cfg.Taxonomy.DatabasePath, filepath.Join(".brocc", "taxonomy.db")) {
		t.Errorf("default database path = %s", cfg.Taxonomy.DatabasePath)
	}
	if cfg.Workers != 4 || cfg.Taxonomy.MaxRetries != 5 || cfg.Taxonomy.CacheSize != 10000 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Output.Formats) != 2 || cfg.Output.Formats[0] != "standard" {
		t.Errorf("default formats = %v", cfg.Output.Formats)
	}
	if cfg.Taxonomy.CachePath != "" {
		t.Error("cache path should stay empty by default")
	}
}

func TestAssignOptions(t *testing.T) {
	tests := []struct {
		name        string
		assign      AssignConfig
		wantErr     string
		wantSpecies float64
		wantGenus   float64
	}{
		{name: "18S preset", assign: AssignConfig{Amplicon: "18s"}, wantSpecies: 99, wantGenus: 96},
		{name: "explicit overrides preset", assign: AssignConfig{Amplicon: "ITS", MinSpeciesID: 97}, wantSpecies: 97, wantGenus: 83.05},
		{name: "explicit without amplicon", assign: AssignConfig{MinSpeciesID: 97, MinGenusID: 90}, wantSpecies: 97, wantGenus: 90},
		{name: "unknown amplicon", assign: AssignConfig{Amplicon: "16S"}, wantErr: "not recognized"},
		{name: "missing thresholds", assign: AssignConfig{MinSpeciesID: 97}, wantErr: "set assign.amplicon"},
		{name: "unknown rank", assign: AssignConfig{Amplicon: "ITS", ConsensusThresholds: map[string]float64{"tribe": 0.5}}, wantErr: "unknown rank: tribe"},
		{name: "consensus out of range", assign: AssignConfig{Amplicon: "ITS", ConsensusThresholds: map[string]float64{"order": 1.5}}, wantErr: "consensus_thresholds.order"},
		{name: "coverage out of range", assign: AssignConfig{Amplicon: "ITS", MinCover: 70}, wantErr: "min_cover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Assign: tt.assign}
			ApplyDefaults(cfg)
			opts, err := cfg.AssignOptions()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if opts.MinSpeciesID != tt.wantSpecies || opts.MinGenusID != tt.wantGenus {
				t.Errorf("species/genus = %v/%v, want %v/%v", opts.MinSpeciesID, opts.MinGenusID, tt.wantSpecies, tt.wantGenus)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Assign.Amplicon = "ITS"
	cfg.Workers = -1
	cfg.Output.Formats = []string{"pdf"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"workers", "output.formats"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:   ServerConfig{Host: "localhost", Port: 9090},
		Taxonomy: TaxonomyConfig{DatabasePath: "/tmp/taxonomy.db"},
		Assign:   AssignConfig{Amplicon: "18S"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Assign.Amplicon != "18S" {
		t.Errorf("loaded config: %+v", loaded)
	}
}
