package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/taxon"
)

// SummaryFormat is the format for run summaries printed by the CLI.
type SummaryFormat string

const (
	// SummaryText is human-readable text (default).
	SummaryText SummaryFormat = "text"
	// SummaryJSON is structured JSON for machine consumption.
	SummaryJSON SummaryFormat = "json"
)

// WriteSummary writes a run summary to w in the given format.
func WriteSummary(w io.Writer, s *models.RunSummary, format SummaryFormat) error {
	switch format {
	case SummaryJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		writeSummaryText(w, s)
		return nil
	}
}

func writeSummaryText(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "\nRun %s: classified %d of %d queries in %dms\n",
		s.RunID, s.Assigned, s.Queries, s.DurationMS)
	if s.OutputDir != "" {
		fmt.Fprintf(w, "Output: %s\n", s.OutputDir)
	}
	if len(s.ByRank) > 0 {
		fmt.Fprintln(w, "\n--- Assigned by rank ---")
		for _, r := range taxon.NarrowestFirst() {
			if n := s.ByRank[r.String()]; n > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", r, n)
			}
		}
	}
	if len(s.Unassigned) > 0 {
		fmt.Fprintln(w, "\n--- Not assigned ---")
		reasons := make([]string, 0, len(s.Unassigned))
		for reason := range s.Unassigned {
			reasons = append(reasons, reason)
		}
		slices.Sort(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-48s %d\n", reason, s.Unassigned[reason])
		}
	}
	fmt.Fprintln(w)
}
