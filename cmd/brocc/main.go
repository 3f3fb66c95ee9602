// Package main is the brocc CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/config"
	"github.com/hyperjump/brocc/internal/output"
	"github.com/hyperjump/brocc/internal/runner"
	"github.com/hyperjump/brocc/internal/server"
	"github.com/hyperjump/brocc/internal/watcher"
	"github.com/hyperjump/brocc/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/brocc/config.yaml"

// watchOutputSuffix is appended to a pair's base name to form its output directory.
const watchOutputSuffix = "_brocc"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present, and a missing default file yields the
// built-in defaults. Returns the config and the path actually loaded ("" for
// built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "classify":
		runClassify()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "compare":
		runCompare()
	case "taxdb":
		runTaxDB()
	case "version", "--version", "-v":
		fmt.Printf("brocc version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// commonFlags are the config overrides shared by every classifying command.
type commonFlags struct {
	configPath      *string
	debug           *bool
	amplicon        *string
	minID           *float64
	minCover        *float64
	minSpeciesID    *float64
	minGenusID      *float64
	minWinningVotes *int
	taxonomyDB      *string
	cache           *string
	workers         *int
	formats         *string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath:      fs.String("config", defaultConfigPath, "config file path"),
		debug:           fs.Bool("debug", false, "enable debug logging"),
		amplicon:        fs.String("amplicon", "", "amplicon preset for species/genus identity: ITS or 18S"),
		minID:           fs.Float64("min-id", 0, "minimum percent identity of a kept hit"),
		minCover:        fs.Float64("min-cover", 0, "minimum alignment length over query length"),
		minSpeciesID:    fs.Float64("min-species-id", 0, "minimum percent identity to vote at species"),
		minGenusID:      fs.Float64("min-genus-id", 0, "minimum percent identity to vote at genus"),
		minWinningVotes: fs.Int("min-winning-votes", 0, "minimum votes for the winning taxon"),
		taxonomyDB:      fs.String("taxonomy-db", "", "local taxonomy database (EUtils is used when it does not exist)"),
		cache:           fs.String("cache", "", "JSON file persisting taxonomy lookups between runs"),
		workers:         fs.Int("workers", 0, "queries classified concurrently"),
		formats:         fs.String("format", "", "comma-separated outputs: standard, full, log, jsonl, xlsx"),
	}
}

// apply copies the flags that were set on the command line into cfg.
func (f *commonFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			cfg.Debug = cfg.Debug || *f.debug
		case "amplicon":
			cfg.Assign.Amplicon = *f.amplicon
		case "min-id":
			cfg.Assign.MinID = *f.minID
		case "min-cover":
			cfg.Assign.MinCover = *f.minCover
		case "min-species-id":
			cfg.Assign.MinSpeciesID = *f.minSpeciesID
		case "min-genus-id":
			cfg.Assign.MinGenusID = *f.minGenusID
		case "min-winning-votes":
			cfg.Assign.MinWinningVotes = *f.minWinningVotes
		case "taxonomy-db":
			cfg.Taxonomy.DatabasePath = *f.taxonomyDB
		case "cache":
			cfg.Taxonomy.CachePath = *f.cache
		case "workers":
			cfg.Workers = *f.workers
		case "format":
			cfg.Output.Formats = splitList(*f.formats)
		}
	})
}

// prepare loads the config, applies flag overrides and validates the result.
func (f *commonFlags) prepare(fs *flag.FlagSet) (*config.Config, string, assign.Options, error) {
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, "", assign.Options{}, err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", assign.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	opts, err := cfg.AssignOptions()
	if err != nil {
		return nil, "", assign.Options{}, err
	}
	return cfg, resolved, opts, nil
}

// setup is prepare plus logger and taxonomy source construction; it exits on failure.
func (f *commonFlags) setup(fs *flag.FlagSet) (*config.Config, assign.Options, *zap.Logger, *Components) {
	cfg, resolved, opts, err := f.prepare(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, opts, logger, components
}

func newRunner(cfg *config.Config, opts assign.Options, logger *zap.Logger, c *Components) *runner.Runner {
	return runner.New(c.Cache, opts, runner.WithWorkers(cfg.Workers), runner.WithLogger(logger))
}

func runClassify() {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	fastaPath := fs.String("i", "", "query FASTA file")
	blastPath := fs.String("b", "", "BLAST tabular output for the queries")
	outDir := fs.String("o", "", "output directory (default from config)")
	summaryFormat := fs.String("output", "text", "summary format: text or json")
	common := registerCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	if *fastaPath == "" || *blastPath == "" {
		fmt.Println("Usage: brocc classify -i <fasta> -b <blast> [-o <dir>] [flags]")
		os.Exit(1)
	}

	cfg, opts, logger, components := common.setup(fs)
	defer logger.Sync()
	defer components.Close()
	if *outDir != "" {
		cfg.Output.Directory = *outDir
	}
	formats, _ := output.ParseFormats(cfg.Output.Formats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	summary, err := newRunner(cfg, opts, logger, components).Run(ctx, runner.Job{
		FastaPath: *fastaPath,
		BlastPath: *blastPath,
		OutputDir: cfg.Output.Directory,
		Formats:   formats,
		VotingLog: true,
	})
	if err != nil {
		logger.Error("classification failed", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
	if err := output.WriteSummary(os.Stdout, summary, output.SummaryFormat(*summaryFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	common := registerCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, opts, logger, components := common.setup(fs)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		w, err := startWatcher(watchCtx, cfg, newRunner(cfg, opts, logger, components), logger)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	assigner := assign.NewAssigner(components.Cache, opts, assign.WithLogger(logger))
	srv := server.NewServer(assigner, components.Cache, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := registerCommonFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, opts, logger, components := common.setup(fs)
	defer logger.Sync()
	defer components.Close()
	cfg.Watch.Directories = append(cfg.Watch.Directories, fs.Args()...)
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("Usage: brocc watch [flags] <dir>...")
		fmt.Println("  Directories may also be listed under watch.directories in the config.")
		components.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w, err := startWatcher(ctx, cfg, newRunner(cfg, opts, logger, components), logger)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("watching", zap.Strings("directories", w.Directories()))
	<-ctx.Done()
	logger.Info("Shutting down...")
}

// startWatcher classifies every BLAST/FASTA pair appearing under the watch
// directories into <base>_brocc/, including pairs already present.
func startWatcher(ctx context.Context, cfg *config.Config, r *runner.Runner, logger *zap.Logger) (*watcher.Watcher, error) {
	formats, err := output.ParseFormats(cfg.Output.Formats)
	if err != nil {
		return nil, err
	}
	onPair := func(p watcher.Pair) {
		outDir := p.Base + watchOutputSuffix
		if upToDate(p, outDir) {
			logger.Debug("watch pair already classified", zap.String("blast", p.Blast))
			return
		}
		summary, err := r.Run(ctx, runner.Job{
			FastaPath: p.Fasta,
			BlastPath: p.Blast,
			OutputDir: outDir,
			Formats:   formats,
			VotingLog: true,
		})
		if err != nil {
			logger.Warn("watch classification failed", zap.String("blast", p.Blast), zap.Error(err))
			return
		}
		logger.Info("watch pair classified",
			zap.String("blast", p.Blast),
			zap.String("output_dir", outDir),
			zap.Int("queries", summary.Queries),
			zap.Int("assigned", summary.Assigned))
	}

	var watchOpts []watcher.WatcherOption
	if cfg.Debug {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	roots := make([]string, 0, len(cfg.Watch.Directories))
	for _, d := range cfg.Watch.Directories {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		roots = append(roots, abs)
	}
	w := watcher.NewWatcher(nil, cfg.Watch.RecursiveOrDefault(), onPair, watchOpts...)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := w.AddDirectory(root, false); err != nil {
			w.Stop()
			return nil, err
		}
	}
	w.SyncExistingFiles()
	return w, nil
}

// upToDate reports whether outDir holds a voting log newer than both files of p.
func upToDate(p watcher.Pair, outDir string) bool {
	out, err := os.Stat(filepath.Join(outDir, output.VotingLogFile))
	if err != nil {
		return false
	}
	for _, in := range []string{p.Blast, p.Fasta} {
		info, err := os.Stat(in)
		if err != nil || !out.ModTime().After(info.ModTime()) {
			return false
		}
	}
	return true
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	outDir := fs.String("out", ".", "directory for <name>_diff.txt and <name>_voting_log.txt")
	common := registerCommonFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: brocc compare [flags] <base>...")
		fmt.Println("  Each <base> names <base>.fasta, <base>_blast.txt and <base>_assignments.txt.")
		os.Exit(1)
	}

	cfg, opts, logger, components := common.setup(fs)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	r := newRunner(cfg, opts, logger, components)
	failed := false
	for _, base := range fs.Args() {
		res, err := r.Compare(ctx, base, *outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Compare %s failed: %v\n", base, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d/%d assigned, %d differing lines (%s)\n",
			filepath.Base(res.Base), res.Summary.Assigned, res.Summary.Queries, res.Differences, res.DiffPath)
	}
	if failed {
		components.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`brocc - Consensus taxonomy assignment from BLAST hits

Usage:
  brocc classify -i <fasta> -b <blast> [flags]  Classify queries and write outputs
  brocc server [flags]                          Start the HTTP server
  brocc watch [flags] <dir>...                  Classify BLAST/FASTA pairs as they appear
  brocc compare [flags] <base>...               Re-classify reference samples and diff the results
  brocc taxdb build --dump-dir <dir> [flags]    Build the local taxonomy database
  brocc taxdb lineage <accession>               Print the lineage of an accession
  brocc version                                 Show version
  brocc help                                    Show this help

Common Flags (classify, server, watch, compare):
  --config string          Config file path (default: /usr/local/etc/brocc/config.yaml)
  --debug                  Enable debug logging
  --amplicon string        Identity presets: ITS (genus 83.05, species 95.2) or 18S (genus 96, species 99)
  --min-id float           Minimum percent identity of a kept hit (default 80)
  --min-cover float        Minimum alignment length over query length (default 0.7)
  --min-species-id float   Minimum identity to vote at species
  --min-genus-id float     Minimum identity to vote at genus
  --min-winning-votes int  Minimum votes for the winning taxon (default 4)
  --taxonomy-db string     Local taxonomy database; NCBI EUtils is used when absent
  --cache string           JSON file persisting taxonomy lookups between runs
  --workers int            Queries classified concurrently (default 4)
  --format string          Outputs: standard,full,log,jsonl,xlsx (default standard,log)

Classify Flags:
  -i string          Query FASTA file
  -b string          BLAST tabular output (-outfmt "6 qseqid sseqid pident length" or 7)
  -o string          Output directory (default: brocc_output)
  --output string    Summary format: text or json (default: text)

Compare Flags:
  --out string       Directory for diff and voting log files (default: .)

Without --amplicon, both --min-species-id and --min-genus-id are required.

Examples:
  brocc classify --amplicon ITS -i sample.fasta -b sample_blast.txt -o results
  brocc classify --min-species-id 97 --min-genus-id 90 -i s.fasta -b s_blast.txt --format standard,xlsx
  brocc taxdb build --download --dump-dir ~/ncbi
  brocc taxdb lineage KX859314.1
  brocc watch --amplicon ITS /data/runs
  brocc compare --amplicon ITS testdata/its1`)
}
