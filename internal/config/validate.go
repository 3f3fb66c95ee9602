package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/output"
	"github.com/hyperjump/brocc/internal/taxon"
)

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers))
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Taxonomy.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("taxonomy.max_retries must be at least 1"))
	}
	if _, err := output.ParseFormats(cfg.Output.Formats); err != nil {
		errs = append(errs, fmt.Errorf("output.formats: %w", err))
	}
	if _, err := cfg.AssignOptions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AssignOptions resolves the amplicon preset and converts the thresholds for
// the assigner. An explicit min_species_id or min_genus_id overrides the preset.
// Without an amplicon both must be given.
func (cfg *Config) AssignOptions() (assign.Options, error) {
	a := cfg.Assign
	opts := assign.Options{
		MinID:           a.MinID,
		MinCover:        a.MinCover,
		MinSpeciesID:    a.MinSpeciesID,
		MinGenusID:      a.MinGenusID,
		MinWinningVotes: a.MinWinningVotes,
		Consensus:       assign.DefaultConsensus(),
		GenericPrefixes: a.GenericPrefixes,
	}

	if a.Amplicon != "" {
		preset, ok := lookupAmplicon(a.Amplicon)
		if !ok {
			return opts, fmt.Errorf("assign.amplicon %q not recognized (use ITS or 18S)", a.Amplicon)
		}
		if opts.MinSpeciesID == 0 {
			opts.MinSpeciesID = preset.MinSpeciesID
		}
		if opts.MinGenusID == 0 {
			opts.MinGenusID = preset.MinGenusID
		}
	} else if opts.MinSpeciesID == 0 || opts.MinGenusID == 0 {
		return opts, errors.New("set assign.amplicon, or both assign.min_species_id and assign.min_genus_id")
	}

	for name, v := range a.ConsensusThresholds {
		r, ok := taxon.ParseRank(name)
		if !ok {
			return opts, fmt.Errorf("assign.consensus_thresholds: %w", &taxon.UnknownRankError{Name: name})
		}
		opts.Consensus[r] = v
	}

	for _, check := range []struct {
		name      string
		v, lo, hi float64
	}{
		{"min_id", opts.MinID, 0, 100},
		{"min_species_id", opts.MinSpeciesID, 0, 100},
		{"min_genus_id", opts.MinGenusID, 0, 100},
		{"min_cover", opts.MinCover, 0, 1},
	} {
		if check.v < check.lo || check.v > check.hi {
			return opts, fmt.Errorf("assign.%s %.2f out of range [%g, %g]", check.name, check.v, check.lo, check.hi)
		}
	}
	for r, v := range opts.Consensus {
		if v <= 0 || v > 1 {
			return opts, fmt.Errorf("assign.consensus_thresholds.%s %.2f out of range (0, 1]", r, v)
		}
	}
	if opts.MinWinningVotes < 1 {
		return opts, fmt.Errorf("assign.min_winning_votes must be at least 1")
	}
	return opts, nil
}

func lookupAmplicon(name string) (AmpliconPreset, bool) {
	for k, p := range Amplicons {
		if strings.EqualFold(k, name) {
			return p, true
		}
	}
	return AmpliconPreset{}, false
}
