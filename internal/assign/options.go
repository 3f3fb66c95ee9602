package assign

import "github.com/hyperjump/brocc/internal/taxon"

// ChimeraFraction is the share of identity-acceptable but short hits above
// which a query is rejected as a likely chimera.
const ChimeraFraction = 0.9

// DefaultConsensus returns the per-rank consensus fractions used when none are configured.
func DefaultConsensus() map[taxon.Rank]float64 {
	return map[taxon.Rank]float64{
		taxon.Species:      0.6,
		taxon.Genus:        0.6,
		taxon.Family:       0.6,
		taxon.Order:        0.7,
		taxon.Class:        0.8,
		taxon.Phylum:       0.9,
		taxon.Kingdom:      0.9,
		taxon.Superkingdom: 0.9,
	}
}

// Options holds the thresholds consumed by the assigner.
type Options struct {
	// MinID is the minimum percent identity for a hit to be kept at all,
	// and the per-rank identity floor above genus.
	MinID float64
	// MinCover is the minimum alignment length over query length.
	MinCover        float64
	MinSpeciesID    float64
	MinGenusID      float64
	MinWinningVotes int
	// Consensus maps each rank to the fraction of candidate votes the leader needs.
	Consensus       map[taxon.Rank]float64
	GenericPrefixes []string
}

// DefaultOptions returns the standard thresholds. Species and genus identity
// floors default to MinID; amplicon presets raise them.
func DefaultOptions() Options {
	return Options{
		MinID:           80,
		MinCover:        0.7,
		MinSpeciesID:    80,
		MinGenusID:      80,
		MinWinningVotes: 4,
		Consensus:       DefaultConsensus(),
	}
}

// RankPolicy is the set of thresholds applied in one voting round.
type RankPolicy struct {
	MinID           float64
	Consensus       float64
	MinWinningVotes int
}

// Policy returns the thresholds for voting at r.
func (o Options) Policy(r taxon.Rank) RankPolicy {
	minID := o.MinID
	switch r {
	case taxon.Species:
		minID = o.MinSpeciesID
	case taxon.Genus:
		minID = o.MinGenusID
	}
	consensus, ok := o.Consensus[r]
	if !ok {
		consensus = DefaultConsensus()[r]
	}
	return RankPolicy{
		MinID:           minID,
		Consensus:       consensus,
		MinWinningVotes: o.MinWinningVotes,
	}
}

func (o Options) matcher() taxon.Matcher {
	return taxon.DefaultMatcher().WithPrefixes(o.GenericPrefixes...)
}
