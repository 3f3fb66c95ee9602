// Package fasta reads query sequences from FASTA files.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/pkg/utils"
)

// Parse yields the records of r in file order. The record id is the whole
// header line after '>'; sequence lines are concatenated with whitespace
// removed. Text before the first header is an error.
func Parse(r io.Reader) iter.Seq2[models.Query, error] {
	return func(yield func(models.Query, error) bool) {
		br := bufio.NewReader(r)
		var (
			cur    *models.Query
			seq    strings.Builder
			lineNo int
		)
		flush := func() bool {
			if cur == nil {
				return true
			}
			cur.Sequence = seq.String()
			seq.Reset()
			return yield(*cur, nil)
		}
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				lineNo++
				line = strings.TrimSpace(line)
				switch {
				case strings.HasPrefix(line, ">"):
					if !flush() {
						return
					}
					cur = &models.Query{ID: strings.TrimSpace(line[1:])}
				case line == "":
				case cur == nil:
					yield(models.Query{}, fmt.Errorf("line %d: sequence data before first header", lineNo))
					return
				default:
					seq.WriteString(strings.Join(strings.Fields(line), ""))
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				yield(models.Query{}, err)
				return
			}
		}
		flush()
	}
}

// ReadFile reads every record of a FASTA file, gzipped or plain.
func ReadFile(path string) ([]models.Query, error) {
	rc, err := utils.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []models.Query
	for q, err := range Parse(rc) {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, q)
	}
	return out, nil
}
