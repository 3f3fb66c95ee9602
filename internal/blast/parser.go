// Package blast reads tabular BLAST output (-outfmt 6 or 7).
package blast

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/pkg/utils"
)

// Record is one hit row tagged with its query id.
type Record struct {
	QueryID string
	Hit     models.Hit
}

// Parse yields the hit rows of r. In commented output the "# Query:" line
// supplies the full query id; otherwise the first column is used. Only the
// subject id, percent identity and alignment length columns are read.
func Parse(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var (
			fullQuery string
			lineNo    int
		)
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if strings.HasPrefix(line, "# Query:") {
				fullQuery = strings.TrimSpace(line[len("# Query:"):])
				continue
			}
			if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
				continue
			}
			rec, err := parseRow(line, fullQuery)
			if err != nil {
				yield(Record{}, fmt.Errorf("line %d: %w", lineNo, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}

func parseRow(line, fullQuery string) (Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 4 {
		return Record{}, fmt.Errorf("expected at least 4 columns, got %d", len(cols))
	}
	for i := range cols[:4] {
		cols[i] = strings.TrimSpace(cols[i])
	}
	pct, err := strconv.ParseFloat(cols[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad percent identity %q", cols[2])
	}
	length, err := strconv.ParseFloat(cols[3], 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad alignment length %q", cols[3])
	}
	queryID := fullQuery
	if queryID == "" {
		queryID = cols[0]
	}
	return Record{
		QueryID: queryID,
		Hit:     models.Hit{Accession: ParseAccession(cols[1]), PctID: pct, Length: length},
	}, nil
}

// ParseAccession extracts the accession from a subject id. Legacy
// "gi|123|gb|ACC|" ids carry it in the fourth field.
func ParseAccession(subject string) string {
	if !strings.Contains(subject, "|") {
		return subject
	}
	fields := strings.Split(subject, "|")
	if len(fields) < 4 {
		return subject
	}
	return fields[3]
}

// Hits groups hit rows by query id, keeping file order within each query.
type Hits map[string][]models.Hit

// Lookup returns the hits of a FASTA record. Uncommented BLAST output only
// carries the first word of the header, so that is tried second.
func (h Hits) Lookup(queryID string) []models.Hit {
	if hits, ok := h[queryID]; ok {
		return hits
	}
	if f := strings.Fields(queryID); len(f) > 0 {
		return h[f[0]]
	}
	return nil
}

// Read collects every row of r.
func Read(r io.Reader) (Hits, error) {
	out := make(Hits)
	for rec, err := range Parse(r) {
		if err != nil {
			return nil, err
		}
		out[rec.QueryID] = append(out[rec.QueryID], rec.Hit)
	}
	return out, nil
}

// ReadFile reads a BLAST table from path, gzipped or plain.
func ReadFile(path string) (Hits, error) {
	rc, err := utils.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	hits, err := Read(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hits, nil
}
