package assign

import (
	"iter"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/taxon"
)

// Reason says why a query was not assigned.
type Reason int

const (
	ReasonNoHits Reason = iota + 1
	ReasonChimera
	ReasonLowQuality
	ReasonNoCandidates
	ReasonPlaceholderWinner
	ReasonBelowConsensus
	ReasonTooFewVotes
	ReasonNoConsensus
)

var reasonMessages = map[Reason]string{
	ReasonNoHits:            "no hits found",
	ReasonChimera:           "abundance of low coverage hits: possible chimera",
	ReasonLowQuality:        "all hits filtered for low quality",
	ReasonNoCandidates:      "no candidates",
	ReasonPlaceholderWinner: "placeholder taxon won the vote",
	ReasonBelowConsensus:    "leading candidate below consensus threshold",
	ReasonTooFewVotes:       "leading candidate below minimum winning votes",
	ReasonNoConsensus:       "no consensus at broadest rank",
}

func (r Reason) String() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "unknown reason"
}

// Candidate is one distinct taxon contending in a voting round.
type Candidate struct {
	Name  string
	Rank  taxon.Rank
	Votes int
	// BestPctID is the highest identity among the hits voting for this taxon.
	BestPctID   float64
	Placeholder bool
	// Lineage is the lineage of the first hit that voted for this taxon.
	Lineage taxon.Lineage
}

// StandardTaxa yields the standard-rank chain down to the candidate's rank.
func (c *Candidate) StandardTaxa() iter.Seq[string] {
	return c.Lineage.StandardTaxa(c.Rank)
}

// FullTaxa yields every reported node down to the candidate's rank.
func (c *Candidate) FullTaxa() iter.Seq[string] {
	return c.Lineage.FullTaxa(c.Rank)
}

// Tally records one voting round.
type Tally struct {
	Rank taxon.Rank
	// Candidates is sorted by votes, best supporting identity, then name.
	Candidates     []*Candidate
	Generic        map[string]int
	CandidateVotes int
	GenericVotes   int
	VotesNeeded    float64
}

// Leader returns the top candidate, or nil for an empty round.
func (t *Tally) Leader() *Candidate {
	if t == nil || len(t.Candidates) == 0 {
		return nil
	}
	return t.Candidates[0]
}

// Result is the outcome of classifying one query: *Assignment or *NoAssignment.
type Result interface {
	ID() string
	isResult()
}

// Assignment is a successful classification.
type Assignment struct {
	QueryID string
	Winner  *Candidate
	Tally   *Tally
}

func (a *Assignment) ID() string { return a.QueryID }
func (*Assignment) isResult()    {}

// Rank is the rank at which consensus was reached.
func (a *Assignment) Rank() taxon.Rank { return a.Winner.Rank }

// NoAssignment is a rejected classification. Tally is nil when the query was
// rejected before any voting round.
type NoAssignment struct {
	QueryID string
	Reason  Reason
	Tally   *Tally
}

func (n *NoAssignment) ID() string { return n.QueryID }
func (*NoAssignment) isResult()    {}

// Message is the human-readable rejection reason.
func (n *NoAssignment) Message() string { return n.Reason.String() }

// Summarize flattens a result for JSON output and the API.
func Summarize(r Result) *models.Classification {
	switch v := r.(type) {
	case *Assignment:
		c := &models.Classification{
			QueryID:      v.QueryID,
			Assigned:     true,
			Taxon:        v.Winner.Name,
			Rank:         v.Winner.Rank.String(),
			Lineage:      taxon.Join(v.Winner.StandardTaxa(), ";"),
			FullLineage:  taxon.Join(v.Winner.FullTaxa(), ";"),
			WinnerVotes:  v.Winner.Votes,
			TotalVotes:   v.Tally.CandidateVotes,
			GenericVotes: v.Tally.GenericVotes,
			Candidates:   candidateVotes(v.Tally),
		}
		return c
	case *NoAssignment:
		c := &models.Classification{
			QueryID: v.QueryID,
			Reason:  v.Message(),
		}
		if v.Tally != nil {
			c.Rank = v.Tally.Rank.String()
			c.TotalVotes = v.Tally.CandidateVotes
			c.GenericVotes = v.Tally.GenericVotes
			c.Candidates = candidateVotes(v.Tally)
		}
		return c
	}
	return nil
}

func candidateVotes(t *Tally) []models.CandidateVote {
	if t == nil || len(t.Candidates) == 0 {
		return nil
	}
	out := make([]models.CandidateVote, len(t.Candidates))
	for i, c := range t.Candidates {
		out[i] = models.CandidateVote{Name: c.Name, Votes: c.Votes}
	}
	return out
}
