package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/output"
)

// Comparison is the outcome of re-classifying a reference sample.
type Comparison struct {
	Base        string
	Summary     *models.RunSummary
	DiffPath    string
	VotingLog   string
	Differences int
}

// Compare classifies <base>.fasta with <base>_blast.txt and diffs the standard
// taxonomy against <base>_assignments.txt. The diff and the voting log are
// written to outDir as <name>_diff.txt and <name>_voting_log.txt. A file
// extension on base is ignored.
func (r *Runner) Compare(ctx context.Context, base, outDir string) (*Comparison, error) {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := filepath.Base(base)

	tmp, err := os.MkdirTemp("", "brocc")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	summary, err := r.Run(ctx, Job{
		FastaPath: base + ".fasta",
		BlastPath: base + "_blast.txt",
		OutputDir: tmp,
		Formats:   []output.Format{output.FormatStandard},
		VotingLog: true,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res := &Comparison{
		Base:      base,
		Summary:   summary,
		DiffPath:  filepath.Join(outDir, name+"_diff.txt"),
		VotingLog: filepath.Join(outDir, name+"_voting_log.txt"),
	}
	if err := copyFile(filepath.Join(tmp, output.VotingLogFile), res.VotingLog); err != nil {
		return nil, fmt.Errorf("failed to copy voting log: %w", err)
	}

	observedPath := filepath.Join(tmp, output.FileNames[output.FormatStandard])
	expectedPath := base + "_assignments.txt"
	observed, err := os.ReadFile(observedPath)
	if err != nil {
		return nil, err
	}
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read expected assignments: %w", err)
	}

	a, b := difflib.SplitLines(string(observed)), difflib.SplitLines(string(expected))
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "observed",
		ToFile:   expectedPath,
		Context:  0,
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.DiffPath, []byte(diff), 0644); err != nil {
		return nil, err
	}
	res.Differences = countChanges(a, b)
	r.logger.Info("comparison complete",
		zap.String("base", base),
		zap.Int("differences", res.Differences),
		zap.String("diff", res.DiffPath))
	return res, nil
}

// countChanges returns the number of lines in the larger side of every
// non-matching block.
func countChanges(a, b []string) int {
	n := 0
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag != 'e' {
			n += max(op.I2-op.I1, op.J2-op.J1)
		}
	}
	return n
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
