package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/blast"
	"github.com/hyperjump/brocc/internal/fasta"
	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/output"
	"github.com/hyperjump/brocc/pkg/utils"
)

// Job names the files of one classification run.
type Job struct {
	FastaPath string
	BlastPath string
	OutputDir string
	Formats   []output.Format
	// VotingLog writes every voting round to voting_log.txt in OutputDir.
	VotingLog bool
}

// Runner classifies FASTA + BLAST file pairs.
type Runner struct {
	source  assign.TaxonomySource
	opts    assign.Options
	workers int
	logger  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of queries classified concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner that resolves lineages from source.
func New(source assign.TaxonomySource, opts assign.Options, options ...Option) *Runner {
	r := &Runner{
		source:  source,
		opts:    opts,
		workers: 4,
		logger:  zap.NewNop(),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run classifies every FASTA record of job against its BLAST hits and writes
// the requested outputs in FASTA order.
func (r *Runner) Run(ctx context.Context, job Job) (*models.RunSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run", runID))

	queries, err := fasta.ReadFile(job.FastaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	hits, err := blast.ReadFile(job.BlastPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read hits: %w", err)
	}
	logger.Info("inputs loaded",
		zap.String("fasta", job.FastaPath),
		zap.String("blast", job.BlastPath),
		zap.Int("queries", len(queries)),
		zap.Int("queries_with_hits", len(hits)))

	w, err := output.Create(job.OutputDir, job.Formats, runID)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	assignerOpts := []assign.AssignerOption{assign.WithLogger(logger)}
	if job.VotingLog {
		votes, closeVotes, err := utils.NewFileLogger(filepath.Join(job.OutputDir, output.VotingLogFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open voting log: %w", err)
		}
		defer func() { _ = closeVotes() }()
		assignerOpts = append(assignerOpts, assign.WithVoteLogger(votes))
	}
	a := assign.NewAssigner(r.source, r.opts, assignerOpts...)

	inputs := make([]Input, len(queries))
	for i, q := range queries {
		inputs[i] = Input{ID: q.ID, QueryLen: len(q.Sequence), Hits: hits.Lookup(q.ID)}
	}
	results, err := ClassifyAll(ctx, a, inputs, r.workers)
	if err != nil {
		return nil, err
	}

	summary := &models.RunSummary{
		RunID:      runID,
		Queries:    len(results),
		ByRank:     make(map[string]int),
		Unassigned: make(map[string]int),
		OutputDir:  job.OutputDir,
	}
	for _, res := range results {
		if err := w.Write(res); err != nil {
			return nil, fmt.Errorf("failed to write results: %w", err)
		}
		Count(summary, res)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	summary.DurationMS = time.Since(start).Milliseconds()
	logger.Info("run complete",
		zap.Int("queries", summary.Queries),
		zap.Int("assigned", summary.Assigned),
		zap.Int64("duration_ms", summary.DurationMS))
	return summary, nil
}

// Count adds one result to a summary.
func Count(s *models.RunSummary, res assign.Result) {
	switch v := res.(type) {
	case *assign.Assignment:
		s.Assigned++
		s.ByRank[v.Rank().String()]++
	case *assign.NoAssignment:
		s.Unassigned[v.Message()]++
	}
}
