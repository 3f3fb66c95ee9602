package taxonomy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/pkg/utils"
)

// ImportFiles names the NCBI dump files loaded by Import.
type ImportFiles struct {
	Names          string // names.dmp
	Nodes          string // nodes.dmp
	AccessionTaxID string // nucl_gb.accession2taxid, optionally gzipped
}

// ImportStats reports the rows read from each file.
type ImportStats struct {
	Names      int
	Nodes      int
	Accessions int
}

// Import builds a fresh taxonomy database at dbPath from NCBI dump files.
func Import(ctx context.Context, dbPath string, files ImportFiles, logger *zap.Logger) (ImportStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats ImportStats

	names, err := readNames(files.Names)
	if err != nil {
		return stats, fmt.Errorf("failed to read names: %w", err)
	}
	stats.Names = len(names)
	logger.Info("read scientific names", zap.Int("count", stats.Names))

	db, err := CreateSQLite(dbPath)
	if err != nil {
		return stats, err
	}
	defer db.Close()

	nodesFile, err := utils.OpenFile(files.Nodes)
	if err != nil {
		return stats, fmt.Errorf("failed to open nodes: %w", err)
	}
	defer nodesFile.Close()
	if stats.Nodes, err = db.InsertNodes(ctx, ParseNodes(nodesFile, names)); err != nil {
		return stats, fmt.Errorf("failed to import nodes: %w", err)
	}
	logger.Info("imported nodes", zap.Int("count", stats.Nodes))

	accFile, err := utils.OpenFile(files.AccessionTaxID)
	if err != nil {
		return stats, fmt.Errorf("failed to open accessions: %w", err)
	}
	defer accFile.Close()
	if stats.Accessions, err = db.InsertAccessions(ctx, ParseAccessions(accFile)); err != nil {
		return stats, fmt.Errorf("failed to import accessions: %w", err)
	}
	logger.Info("imported accessions", zap.Int("count", stats.Accessions))

	return stats, nil
}

func readNames(path string) (map[int64]string, error) {
	f, err := utils.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names := make(map[int64]string)
	for rec, err := range ParseNames(f) {
		if err != nil {
			return nil, err
		}
		names[rec.TaxID] = rec.Name
	}
	return names, nil
}

// dumpFields splits one "\t|\t"-delimited line of an NCBI .dmp file.
func dumpFields(line string) []string {
	line = strings.TrimRight(line, "\t|\r\n")
	return strings.Split(line, "\t|\t")
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}

// ScientificName is one scientific-name row of names.dmp.
type ScientificName struct {
	TaxID int64
	Name  string
}

// ParseNames yields the scientific names in names.dmp. Synonyms and other
// name classes are skipped.
func ParseNames(r io.Reader) iter.Seq2[ScientificName, error] {
	return func(yield func(ScientificName, error) bool) {
		sc := newScanner(r)
		line := 0
		for sc.Scan() {
			line++
			f := dumpFields(sc.Text())
			if len(f) < 4 || f[3] != "scientific name" {
				continue
			}
			id, err := strconv.ParseInt(f[0], 10, 64)
			if err != nil {
				yield(ScientificName{}, fmt.Errorf("names line %d: bad taxon id %q", line, f[0]))
				return
			}
			if !yield(ScientificName{TaxID: id, Name: f[1]}, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(ScientificName{}, err)
		}
	}
}

// ParseNodes yields the rows of nodes.dmp named from names. Nodes without a
// scientific name are named "<no name (TAXID)>".
func ParseNodes(r io.Reader, names map[int64]string) iter.Seq2[Node, error] {
	return func(yield func(Node, error) bool) {
		sc := newScanner(r)
		line := 0
		for sc.Scan() {
			line++
			f := dumpFields(sc.Text())
			if len(f) < 3 {
				continue
			}
			id, err := strconv.ParseInt(f[0], 10, 64)
			if err != nil {
				yield(Node{}, fmt.Errorf("nodes line %d: bad taxon id %q", line, f[0]))
				return
			}
			parent, err := strconv.ParseInt(f[1], 10, 64)
			if err != nil {
				yield(Node{}, fmt.Errorf("nodes line %d: bad parent id %q", line, f[1]))
				return
			}
			name, ok := names[id]
			if !ok {
				name = fmt.Sprintf("<no name (%d)>", id)
			}
			if !yield(Node{TaxID: id, Parent: parent, Name: name, Rank: f[2]}, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Node{}, err)
		}
	}
}

// ParseAccessions yields (accession, taxid) pairs from an accession2taxid
// table. The header line is skipped; the first column already carries the
// unversioned accession.
func ParseAccessions(r io.Reader) iter.Seq2[AccessionTaxID, error] {
	return func(yield func(AccessionTaxID, error) bool) {
		sc := newScanner(r)
		line := 0
		for sc.Scan() {
			line++
			if line == 1 {
				continue
			}
			f := strings.Split(strings.TrimRight(sc.Text(), "\r\n"), "\t")
			if len(f) < 3 {
				continue
			}
			id, err := strconv.ParseInt(f[2], 10, 64)
			if err != nil {
				yield(AccessionTaxID{}, fmt.Errorf("accessions line %d: bad taxon id %q", line, f[2]))
				return
			}
			if !yield(AccessionTaxID{Accession: Unversion(f[0]), TaxID: id}, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(AccessionTaxID{}, err)
		}
	}
}
