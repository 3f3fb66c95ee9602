package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/taxon"
	"github.com/hyperjump/brocc/internal/taxonomy"
	"github.com/hyperjump/brocc/pkg/utils"
)

// accessionTables lists the accession-to-taxid files looked for in a dump
// directory, in order of preference.
var accessionTables = []string{
	"nucl_gb.accession2taxid.gz",
	"nucl_gb.accession2taxid",
}

func runTaxDB() {
	if len(os.Args) < 3 {
		printTaxDBUsage()
		os.Exit(1)
	}
	switch os.Args[2] {
	case "build":
		runTaxDBBuild(os.Args[3:])
	case "lineage":
		runTaxDBLineage(os.Args[3:])
	default:
		fmt.Printf("Unknown taxdb subcommand: %s\n", os.Args[2])
		printTaxDBUsage()
		os.Exit(1)
	}
}

func printTaxDBUsage() {
	fmt.Println("Usage: brocc taxdb <build|lineage>")
	fmt.Println("  brocc taxdb build --dump-dir <dir> [--download] [--database <path>]")
	fmt.Println("  brocc taxdb lineage [--config <path>] <accession>")
}

// findDumpFiles locates names.dmp, nodes.dmp and an accession table in dir.
func findDumpFiles(dir string) (taxonomy.ImportFiles, error) {
	files := taxonomy.ImportFiles{
		Names: filepath.Join(dir, "names.dmp"),
		Nodes: filepath.Join(dir, "nodes.dmp"),
	}
	var errs []error
	for _, p := range []string{files.Names, files.Nodes} {
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range accessionTables {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			files.AccessionTaxID = p
			break
		}
	}
	if files.AccessionTaxID == "" {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.accession2taxid*"))
		if len(matches) == 0 {
			errs = append(errs, fmt.Errorf("no accession2taxid file in %s", dir))
		} else {
			files.AccessionTaxID = matches[0]
		}
	}
	return files, errors.Join(errs...)
}

func runTaxDBBuild(args []string) {
	fs := flag.NewFlagSet("taxdb build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dumpDir := fs.String("dump-dir", "", "directory holding (or receiving) the NCBI dump files")
	download := fs.Bool("download", false, "download the dump files from NCBI first")
	dumpURL := fs.String("dump-url", taxonomy.DefaultDumpURL, "base URL of the NCBI taxonomy dump")
	dbPath := fs.String("database", "", "database to create (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)
	if *dumpDir == "" {
		printTaxDBUsage()
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Taxonomy.DatabasePath = *dbPath
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var files taxonomy.ImportFiles
	if *download {
		d := &taxonomy.Downloader{BaseURL: *dumpURL, Client: &http.Client{}, Logger: logger}
		files, err = d.Download(ctx, *dumpDir)
	} else {
		files, err = findDumpFiles(*dumpDir)
	}
	if err != nil {
		logger.Fatal("taxonomy dump not available", zap.String("dump_dir", *dumpDir), zap.Error(err))
	}

	logger.Info("building taxonomy database", zap.String("database", cfg.Taxonomy.DatabasePath))
	stats, err := taxonomy.Import(ctx, cfg.Taxonomy.DatabasePath, files, logger)
	if err != nil {
		logger.Fatal("taxonomy import failed", zap.Error(err))
	}
	fmt.Printf("Built %s: %d nodes, %d accessions\n", cfg.Taxonomy.DatabasePath, stats.Nodes, stats.Accessions)
}

func runTaxDBLineage(args []string) {
	fs := flag.NewFlagSet("taxdb lineage", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("database", "", "taxonomy database (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() != 1 {
		printTaxDBUsage()
		os.Exit(1)
	}
	accession := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Taxonomy.DatabasePath = *dbPath
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := printLineage(context.Background(), os.Stdout, components.Cache, accession); err != nil {
		fmt.Fprintf(os.Stderr, "Lineage lookup failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
}

func printLineage(ctx context.Context, w io.Writer, source taxonomy.Source, accession string) error {
	taxID, err := source.TaxonID(ctx, accession)
	if err != nil {
		return fmt.Errorf("accession %s: %w", accession, err)
	}
	entries, err := source.Lineage(ctx, taxID)
	if err != nil {
		return fmt.Errorf("taxon %s: %w", taxID, err)
	}
	fmt.Fprintf(w, "accession:  %s\n", accession)
	fmt.Fprintf(w, "taxon_id:   %s\n", taxID)
	fmt.Fprintf(w, "lineage:    %s\n", taxon.Join(taxon.FromEntries(entries).StandardTaxa(taxon.Species), ";"))
	fmt.Fprintln(w)
	for _, e := range entries {
		fmt.Fprintf(w, "%-14s %s\n", e.Rank, e.Name)
	}
	return nil
}
