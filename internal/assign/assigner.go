// Package assign reconciles the lineages of many search hits into one
// consensus classification per query.
package assign

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/taxon"
)

// TaxonomySource resolves hits to lineages. Implementations live in the
// taxonomy package; any error is treated as an unresolved lineage.
type TaxonomySource interface {
	TaxonID(ctx context.Context, accession string) (string, error)
	Lineage(ctx context.Context, taxonID string) ([]taxon.Entry, error)
}

// Assigner classifies queries by rank-by-rank consensus voting.
type Assigner struct {
	opts    Options
	source  TaxonomySource
	matcher taxon.Matcher
	logger  *zap.Logger
	votes   *zap.Logger
}

// AssignerOption configures an Assigner.
type AssignerOption func(*Assigner)

// WithLogger sets the logger for lookup failures.
func WithLogger(l *zap.Logger) AssignerOption {
	return func(a *Assigner) { a.logger = l }
}

// WithVoteLogger sets the logger that receives one entry per voting round.
func WithVoteLogger(l *zap.Logger) AssignerOption {
	return func(a *Assigner) { a.votes = l }
}

// NewAssigner creates an assigner reading lineages from source.
func NewAssigner(source TaxonomySource, opts Options, options ...AssignerOption) *Assigner {
	if opts.Consensus == nil {
		opts.Consensus = DefaultConsensus()
	}
	a := &Assigner{
		opts:    opts,
		source:  source,
		matcher: opts.matcher(),
		logger:  zap.NewNop(),
		votes:   zap.NewNop(),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Options returns the thresholds in force.
func (a *Assigner) Options() Options {
	return a.opts
}

// Assign classifies one query from its hits. It never fails: every rejection
// is a *NoAssignment with a distinct Reason.
func (a *Assigner) Assign(ctx context.Context, queryID string, queryLen int, hits []models.Hit) Result {
	if len(hits) == 0 {
		return &NoAssignment{QueryID: queryID, Reason: ReasonNoHits}
	}
	kept, lowCoverage := QualityFilter(queryLen, hits, a.opts.MinID, a.opts.MinCover)
	if lowCoverage > ChimeraFraction {
		return &NoAssignment{QueryID: queryID, Reason: ReasonChimera}
	}
	if len(kept) == 0 {
		return &NoAssignment{QueryID: queryID, Reason: ReasonLowQuality}
	}
	return a.Vote(queryID, a.Resolve(ctx, kept))
}

// Resolve looks up the lineage of every hit, ordered by descending identity.
// Hits that cannot be resolved carry taxon.NoLineage.
func (a *Assigner) Resolve(ctx context.Context, hits []models.Hit) []LineageHit {
	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, func(x, y models.Hit) int {
		return cmp.Compare(y.PctID, x.PctID)
	})
	out := make([]LineageHit, len(sorted))
	for i, h := range sorted {
		out[i] = LineageHit{Hit: h, Lineage: a.lineage(ctx, h.Accession)}
	}
	return out
}

func (a *Assigner) lineage(ctx context.Context, accession string) taxon.Lineage {
	taxID, err := a.source.TaxonID(ctx, accession)
	if err != nil {
		a.logger.Debug("taxon id not resolved", zap.String("accession", accession), zap.Error(err))
		return taxon.NoLineage{}
	}
	entries, err := a.source.Lineage(ctx, taxID)
	if err != nil {
		a.logger.Debug("lineage not resolved",
			zap.String("accession", accession),
			zap.String("taxon_id", taxID),
			zap.Error(err))
		return taxon.NoLineage{}
	}
	return taxon.FromEntries(entries, taxon.WithMatcher(a.matcher))
}

// Vote tries each rank from species up to superkingdom and returns the first
// assignment. When no rank reaches consensus the result carries the tally of
// the broadest round.
func (a *Assigner) Vote(queryID string, hits []LineageHit) Result {
	var last *NoAssignment
	for _, rank := range taxon.NarrowestFirst() {
		r := VoteAtRank(queryID, rank, hits, a.opts.Policy(rank))
		a.logRound(r)
		switch v := r.(type) {
		case *Assignment:
			return v
		case *NoAssignment:
			last = v
		}
	}
	return &NoAssignment{QueryID: queryID, Reason: ReasonNoConsensus, Tally: last.Tally}
}

func (a *Assigner) logRound(r Result) {
	var (
		tally   *Tally
		outcome string
	)
	switch v := r.(type) {
	case *Assignment:
		tally, outcome = v.Tally, "assigned"
	case *NoAssignment:
		tally, outcome = v.Tally, v.Message()
	}
	fields := []zap.Field{
		zap.String("query", r.ID()),
		zap.String("rank", tally.Rank.String()),
		zap.String("outcome", outcome),
		zap.Int("candidate_votes", tally.CandidateVotes),
		zap.Int("generic_votes", tally.GenericVotes),
		zap.Float64("votes_needed", tally.VotesNeeded),
		zap.Strings("candidates", formatCandidates(tally.Candidates)),
	}
	if len(tally.Generic) > 0 {
		fields = append(fields, zap.Strings("generic", formatGeneric(tally.Generic)))
	}
	a.votes.Debug("vote", fields...)
}

func formatCandidates(cs []*Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = fmt.Sprintf("%s=%d", c.Name, c.Votes)
	}
	return out
}

func formatGeneric(g map[string]int) []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = fmt.Sprintf("%s=%d", name, g[name])
	}
	return out
}
