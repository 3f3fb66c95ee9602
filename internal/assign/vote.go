package assign

import (
	"cmp"
	"slices"

	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/taxon"
)

// LineageHit pairs a quality-filtered hit with its resolved lineage.
type LineageHit struct {
	Hit     models.Hit
	Lineage taxon.Lineage
}

// QualityFilter keeps hits meeting both the identity and the coverage floor.
// lowCoverage is the fraction of all hits whose identity was acceptable but
// whose coverage was not. hits must be non-empty.
func QualityFilter(queryLen int, hits []models.Hit, minID, minCover float64) (kept []models.Hit, lowCoverage float64) {
	var short int
	for _, h := range hits {
		identityOK := h.PctID >= minID
		coverageOK := h.Coverage(queryLen) >= minCover
		switch {
		case identityOK && coverageOK:
			kept = append(kept, h)
		case identityOK:
			short++
		}
	}
	return kept, float64(short) / float64(len(hits))
}

// VoteAtRank runs one voting round at rank. Generic taxa are tallied apart
// and never become candidates. The leader wins only if it is a real taxon
// and clears both the proportional and the absolute vote threshold.
func VoteAtRank(queryID string, rank taxon.Rank, hits []LineageHit, p RankPolicy) Result {
	tally := &Tally{Rank: rank, Generic: make(map[string]int)}
	byName := make(map[string]*Candidate)
	for _, h := range hits {
		if h.Hit.PctID <= p.MinID {
			continue
		}
		name, ok := h.Lineage.Taxon(rank)
		if !ok {
			continue
		}
		if h.Lineage.IsGeneric(rank) {
			tally.Generic[name]++
			tally.GenericVotes++
			continue
		}
		c, ok := byName[name]
		if !ok {
			c = &Candidate{
				Name:        name,
				Rank:        rank,
				BestPctID:   h.Hit.PctID,
				Placeholder: h.Lineage.IsPlaceholder(rank),
				Lineage:     h.Lineage,
			}
			byName[name] = c
			tally.Candidates = append(tally.Candidates, c)
		}
		c.Votes++
		c.BestPctID = max(c.BestPctID, h.Hit.PctID)
	}

	if len(tally.Candidates) == 0 {
		return &NoAssignment{QueryID: queryID, Reason: ReasonNoCandidates, Tally: tally}
	}

	sortCandidates(tally.Candidates)
	for _, c := range tally.Candidates {
		tally.CandidateVotes += c.Votes
	}
	tally.VotesNeeded = float64(tally.CandidateVotes) * p.Consensus

	leader := tally.Candidates[0]
	switch {
	case leader.Placeholder:
		return &NoAssignment{QueryID: queryID, Reason: ReasonPlaceholderWinner, Tally: tally}
	case float64(leader.Votes) < tally.VotesNeeded:
		return &NoAssignment{QueryID: queryID, Reason: ReasonBelowConsensus, Tally: tally}
	case leader.Votes < p.MinWinningVotes:
		return &NoAssignment{QueryID: queryID, Reason: ReasonTooFewVotes, Tally: tally}
	}
	return &Assignment{QueryID: queryID, Winner: leader, Tally: tally}
}

// sortCandidates orders by votes, then best supporting identity, then name.
func sortCandidates(cs []*Candidate) {
	slices.SortStableFunc(cs, func(a, b *Candidate) int {
		if c := cmp.Compare(b.Votes, a.Votes); c != 0 {
			return c
		}
		if c := cmp.Compare(b.BestPctID, a.BestPctID); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
