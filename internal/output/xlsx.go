package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/brocc/internal/assign"
)

const xlsxSheet = "Assignments"

var xlsxHeader = []any{
	"Sequence", "Assigned", "Taxon", "Level", "Classification",
	"Winner_Votes", "Votes_Cast", "Generics_Pruned", "Reason", "Run",
}

// xlsxSink buffers rows in an excelize workbook and saves it on close.
type xlsxSink struct {
	f     *excelize.File
	path  string
	runID string
	row   int
}

func newXLSXSink(path, runID string) (*xlsxSink, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &xlsxHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &xlsxSink{f: f, path: path, runID: runID, row: 1}, nil
}

func (s *xlsxSink) write(r assign.Result) error {
	c := assign.Summarize(r)
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	values := []any{
		c.QueryID, c.Assigned, c.Taxon, c.Rank, c.Lineage,
		c.WinnerVotes, c.TotalVotes, c.GenericVotes, c.Reason, s.runID,
	}
	return s.f.SetSheetRow(xlsxSheet, cell, &values)
}

func (s *xlsxSink) close() error {
	defer s.f.Close()
	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
