package config

import "github.com/hyperjump/brocc/internal/taxonomy"

// AmpliconPreset holds the species and genus identity floors of an amplicon.
type AmpliconPreset struct {
	MinGenusID   float64
	MinSpeciesID float64
}

// Amplicons maps amplicon names to their identity presets.
var Amplicons = map[string]AmpliconPreset{
	"ITS": {MinGenusID: 83.05, MinSpeciesID: 95.2},
	"18S": {MinGenusID: 96.0, MinSpeciesID: 99.0},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Taxonomy.DatabasePath == "" {
		cfg.Taxonomy.DatabasePath = ".brocc/taxonomy.db"
	}
	if cfg.Taxonomy.EUtilsURL == "" {
		cfg.Taxonomy.EUtilsURL = taxonomy.DefaultEUtilsURL
	}
	if cfg.Taxonomy.MaxRetries == 0 {
		cfg.Taxonomy.MaxRetries = 5
	}
	if cfg.Taxonomy.TimeoutSeconds == 0 {
		cfg.Taxonomy.TimeoutSeconds = 30
	}
	if cfg.Taxonomy.CacheSize == 0 {
		cfg.Taxonomy.CacheSize = taxonomy.DefaultCacheSize
	}
	if cfg.Assign.MinID == 0 {
		cfg.Assign.MinID = 80
	}
	if cfg.Assign.MinCover == 0 {
		cfg.Assign.MinCover = 0.7
	}
	if cfg.Assign.MinWinningVotes == 0 {
		cfg.Assign.MinWinningVotes = 4
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "brocc_output"
	}
	if cfg.Output.Formats == nil {
		cfg.Output.Formats = []string{"standard", "log"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
