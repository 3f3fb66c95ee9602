// Package output writes classification results in the formats BROCC users
// expect: tab-separated taxonomy tables, the assignment log, JSON lines and
// an Excel workbook.
package output

import (
	"fmt"
	"strings"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/taxon"
)

// Format names one output file.
type Format string

const (
	// FormatStandard is Standard_Taxonomy.txt: query id and standard-rank chain.
	FormatStandard Format = "standard"
	// FormatFull is Full_Taxonomy.txt: query id and every reported node.
	FormatFull Format = "full"
	// FormatLog is brocc.log: vote counts and rank per query.
	FormatLog Format = "log"
	// FormatJSONL is assignments.jsonl, one JSON object per query.
	FormatJSONL Format = "jsonl"
	// FormatXLSX is assignments.xlsx.
	FormatXLSX Format = "xlsx"
)

// FileNames maps each format to the file it produces.
var FileNames = map[Format]string{
	FormatStandard: "Standard_Taxonomy.txt",
	FormatFull:     "Full_Taxonomy.txt",
	FormatLog:      "brocc.log",
	FormatJSONL:    "assignments.jsonl",
	FormatXLSX:     "assignments.xlsx",
}

// VotingLogFile is written next to the result files when voting is logged.
const VotingLogFile = "voting_log.txt"

// LogHeader is the first line of brocc.log.
const LogHeader = "Sequence\tWinner_Votes\tVotes_Cast\tGenerics_Pruned\tLevel\tClassification"

// ParseFormats validates format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool, len(names))
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := FileNames[f]; !ok {
			return nil, fmt.Errorf("unknown output format %q", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// StandardLine formats a result for Standard_Taxonomy.txt.
func StandardLine(r assign.Result) string {
	switch v := r.(type) {
	case *assign.Assignment:
		return v.QueryID + "\t" + taxon.Join(v.Winner.StandardTaxa(), ";")
	case *assign.NoAssignment:
		return v.QueryID + "\t" + v.Message()
	}
	return ""
}

// FullLine formats a result for Full_Taxonomy.txt.
func FullLine(r assign.Result) string {
	switch v := r.(type) {
	case *assign.Assignment:
		return v.QueryID + "\t" + taxon.Join(v.Winner.FullTaxa(), ";")
	case *assign.NoAssignment:
		return v.QueryID + "\t" + v.Message()
	}
	return ""
}

// LogLine formats a result for brocc.log.
func LogLine(r assign.Result) string {
	switch v := r.(type) {
	case *assign.Assignment:
		return fmt.Sprintf("%s\t%d\t%d\t%d\t%s\t%s",
			v.QueryID, v.Winner.Votes, v.Tally.CandidateVotes, v.Tally.GenericVotes,
			v.Rank(), taxon.Join(v.Winner.FullTaxa(), ";"))
	case *assign.NoAssignment:
		return v.QueryID + "\t" + v.Message()
	}
	return ""
}
