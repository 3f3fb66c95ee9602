package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/brocc/internal/config"
	"github.com/hyperjump/brocc/internal/output"
	"github.com/hyperjump/brocc/internal/taxon"
	"github.com/hyperjump/brocc/internal/taxonomy"
	"github.com/hyperjump/brocc/internal/watcher"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after dirs are moved first",
			args:     []string{"/data/runs", "-amplicon", "ITS"},
			expected: []string{"-amplicon", "ITS", "/data/runs"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-amplicon", "ITS", "/data/runs"},
			expected: []string{"-amplicon", "ITS", "/data/runs"},
		},
		{
			name:     "positionals only returns unchanged",
			args:     []string{"a", "b"},
			expected: []string{"a", "b"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"standard", []string{"standard"}},
		{"standard, full ,xlsx", []string{"standard", "full", "xlsx"}},
		{"a,,b,", []string{"a", "b"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCommonFlags_onlySetFlagsOverride(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	if err := fs.Parse([]string{"-amplicon", "18S", "-min-cover", "0.5", "-format", "standard,jsonl"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Assign.MinWinningVotes = 7
	common.apply(fs, cfg)

	if cfg.Assign.Amplicon != "18S" {
		t.Errorf("amplicon = %q", cfg.Assign.Amplicon)
	}
	if cfg.Assign.MinCover != 0.5 {
		t.Errorf("min_cover = %v", cfg.Assign.MinCover)
	}
	if cfg.Assign.MinWinningVotes != 7 {
		t.Errorf("unset flag overrode min_winning_votes: %d", cfg.Assign.MinWinningVotes)
	}
	if !reflect.DeepEqual(cfg.Output.Formats, []string{"standard", "jsonl"}) {
		t.Errorf("formats = %v", cfg.Output.Formats)
	}
}

func TestCommonFlags_prepare(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
assign:
  min_species_id: 97
  min_genus_id: 90
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("config thresholds", func(t *testing.T) {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		common := registerCommonFlags(fs)
		if err := fs.Parse([]string{"-config", configPath}); err != nil {
			t.Fatal(err)
		}
		_, resolved, opts, err := common.prepare(fs)
		if err != nil {
			t.Fatal(err)
		}
		if resolved != configPath {
			t.Errorf("resolved = %q", resolved)
		}
		if opts.MinSpeciesID != 97 || opts.MinGenusID != 90 {
			t.Errorf("opts = %+v", opts)
		}
	})

	t.Run("invalid flag value", func(t *testing.T) {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		common := registerCommonFlags(fs)
		if err := fs.Parse([]string{"-config", configPath, "-amplicon", "16S"}); err != nil {
			t.Fatal(err)
		}
		if _, _, _, err := common.prepare(fs); err == nil || !strings.Contains(err.Error(), "16S") {
			t.Errorf("expected amplicon error, got %v", err)
		}
	})
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
assign:
  amplicon: ITS
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNoConfigFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config is installed")
	}
	t.Chdir(t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want built-in defaults", resolved)
	}
	if cfg.Workers != 4 || cfg.Assign.MinWinningVotes != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestFindDumpFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"names.dmp", "nodes.dmp", "nucl_gb.accession2taxid", "nucl_gb.accession2taxid.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := findDumpFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if files.AccessionTaxID != filepath.Join(dir, "nucl_gb.accession2taxid.gz") {
		t.Errorf("accession table = %q, want the gzipped one", files.AccessionTaxID)
	}

	other := t.TempDir()
	if err := os.WriteFile(filepath.Join(other, "nucl_wgs.accession2taxid.gz"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	files, err = findDumpFiles(other)
	if err == nil {
		t.Fatal("expected error for missing names.dmp and nodes.dmp")
	}
	if files.AccessionTaxID != filepath.Join(other, "nucl_wgs.accession2taxid.gz") {
		t.Errorf("accession table = %q", files.AccessionTaxID)
	}
}

func TestUpToDate(t *testing.T) {
	dir := t.TempDir()
	p := watcher.Pair{
		Base:  filepath.Join(dir, "s"),
		Blast: filepath.Join(dir, "s_blast.txt"),
		Fasta: filepath.Join(dir, "s.fasta"),
	}
	outDir := p.Base + watchOutputSuffix
	for _, f := range []string{p.Blast, p.Fasta} {
		if err := os.WriteFile(f, nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if upToDate(p, outDir) {
		t.Error("no output yet, should not be up to date")
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(outDir, output.VotingLogFile)
	if err := os.WriteFile(logPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	for _, f := range []string{p.Blast, p.Fasta} {
		if err := os.Chtimes(f, past, past); err != nil {
			t.Fatal(err)
		}
	}
	if !upToDate(p, outDir) {
		t.Error("output newer than inputs should be up to date")
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(p.Blast, future, future); err != nil {
		t.Fatal(err)
	}
	if upToDate(p, outDir) {
		t.Error("modified BLAST file should trigger a new run")
	}
}

func TestInitializeComponents(t *testing.T) {
	t.Run("eutils when database is missing", func(t *testing.T) {
		cfg := config.Default()
		cfg.Taxonomy.DatabasePath = filepath.Join(t.TempDir(), "missing.db")
		c, err := initializeComponents(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		if c.Database != nil {
			t.Error("expected no database")
		}
		if c.Cache == nil {
			t.Error("expected a cache")
		}
	})

	t.Run("sqlite when database exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "taxonomy.db")
		db, err := taxonomy.CreateSQLite(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		cfg := config.Default()
		cfg.Taxonomy.DatabasePath = dbPath
		c, err := initializeComponents(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		if c.Database == nil {
			t.Fatal("expected the local database")
		}
		if c.Database.Path() != dbPath {
			t.Errorf("database path = %q", c.Database.Path())
		}
	})

	t.Run("cache saved on close", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.Default()
		cfg.Taxonomy.DatabasePath = filepath.Join(dir, "missing.db")
		cfg.Taxonomy.CachePath = filepath.Join(dir, "cache", "lookups.json")
		c, err := initializeComponents(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		c.Close()
		c.Close()
		if _, err := os.Stat(cfg.Taxonomy.CachePath); err != nil {
			t.Errorf("cache file not written: %v", err)
		}
	})
}

type stubSource struct{}

func (stubSource) TaxonID(_ context.Context, accession string) (string, error) {
	if accession != "KX1.1" {
		return "", taxonomy.ErrNotFound
	}
	return "5476", nil
}

func (stubSource) Lineage(context.Context, string) ([]taxon.Entry, error) {
	return []taxon.Entry{
		{Name: "Eukaryota", Rank: "superkingdom"},
		{Name: "Fungi", Rank: "kingdom"},
		{Name: "Candida", Rank: "genus"},
		{Name: "Candida albicans", Rank: "species"},
	}, nil
}

func TestPrintLineage(t *testing.T) {
	var buf bytes.Buffer
	if err := printLineage(context.Background(), &buf, stubSource{}, "KX1.1"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "taxon_id:   5476") {
		t.Errorf("missing taxon id in %q", out)
	}
	want := "lineage:    Eukaryota;Fungi;Candida (phylum);Candida (class);Candida (order);Candida (family);Candida;Candida albicans"
	if !strings.Contains(out, want) {
		t.Errorf("missing standard lineage in %q", out)
	}

	if err := printLineage(context.Background(), &buf, stubSource{}, "NOPE"); err == nil {
		t.Error("expected error for unknown accession")
	}
}
