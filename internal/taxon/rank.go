// Package taxon models a hit's taxonomic lineage on the eight standard ranks.
package taxon

import "strings"

// Rank is one of the eight standard taxonomic levels. Lower values are broader.
type Rank int

const (
	Superkingdom Rank = iota
	Kingdom
	Phylum
	Class
	Order
	Family
	Genus
	Species
)

// Ranks lists the standard ranks from broadest to narrowest.
var Ranks = []Rank{Superkingdom, Kingdom, Phylum, Class, Order, Family, Genus, Species}

var rankNames = [...]string{"superkingdom", "kingdom", "phylum", "class", "order", "family", "genus", "species"}

// String returns the lowercase rank name.
func (r Rank) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return rankNames[r]
}

// Valid reports whether r is one of the standard ranks.
func (r Rank) Valid() bool {
	return r >= Superkingdom && r <= Species
}

// Broader returns the next broader rank. ok is false for Superkingdom.
func (r Rank) Broader() (Rank, bool) {
	if r <= Superkingdom || !r.Valid() {
		return r, false
	}
	return r - 1, true
}

// NarrowestFirst returns the standard ranks from species to superkingdom.
func NarrowestFirst() []Rank {
	out := make([]Rank, len(Ranks))
	for i, r := range Ranks {
		out[len(Ranks)-1-i] = r
	}
	return out
}

// ParseRank maps a rank name to a standard Rank. "domain" is accepted as
// superkingdom because newer NCBI dumps use it for the top level.
func ParseRank(s string) (Rank, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "domain" {
		return Superkingdom, true
	}
	for i, n := range rankNames {
		if n == name {
			return Rank(i), true
		}
	}
	return 0, false
}

// MarshalText encodes the rank by name.
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rank name, so ranks can key YAML and JSON maps.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, ok := ParseRank(string(text))
	if !ok {
		return &UnknownRankError{Name: string(text)}
	}
	*r = parsed
	return nil
}

// UnknownRankError is returned when a rank name is not one of the standard ranks.
type UnknownRankError struct {
	Name string
}

func (e *UnknownRankError) Error() string {
	return "unknown rank: " + e.Name
}
