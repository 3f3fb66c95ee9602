package taxon

import (
	"fmt"
	"iter"
	"strings"
)

// Entry is one node of a reported lineage. Rank holds the raw rank text
// ("genus", "no rank", "subphylum", ...).
type Entry struct {
	Name string `json:"name"`
	Rank string `json:"rank"`
}

// Lineage answers rank queries about one hit's taxonomic path.
type Lineage interface {
	// Taxon returns the name at r, synthesizing a placeholder when r is not
	// reported but a deeper standard rank is. ok is false when nothing at or
	// below r is known.
	Taxon(r Rank) (name string, ok bool)
	// IsPlaceholder reports whether Taxon(r) was synthesized.
	IsPlaceholder(r Rank) bool
	// IsGeneric reports whether r falls under an unclassified or environmental marker.
	IsGeneric(r Rank) bool
	// StandardTaxa yields the resolved names for every standard rank from
	// superkingdom down to r.
	StandardTaxa(r Rank) iter.Seq[string]
	// FullTaxa yields every reported node, ranked or not, down to r.
	FullTaxa(r Rank) iter.Seq[string]
}

// Resolved is a Lineage backed by reported entries, narrowest last.
type Resolved struct {
	entries []Entry
	byRank  [len(rankNames)]int
	matcher Matcher
}

// Option configures a Resolved lineage.
type Option func(*Resolved)

// WithMatcher replaces the generic-marker matcher.
func WithMatcher(m Matcher) Option {
	return func(l *Resolved) { l.matcher = m }
}

// New builds a lineage from entries ordered broadest first. Entries with an
// empty name are dropped.
func New(entries []Entry, opts ...Option) *Resolved {
	l := &Resolved{matcher: DefaultMatcher()}
	for i := range l.byRank {
		l.byRank[i] = -1
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		l.entries = append(l.entries, Entry{Name: name, Rank: strings.TrimSpace(e.Rank)})
		if r, ok := ParseRank(e.Rank); ok {
			l.byRank[r] = len(l.entries) - 1
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromEntries returns a Resolved lineage, or NoLineage when entries hold no
// usable node.
func FromEntries(entries []Entry, opts ...Option) Lineage {
	l := New(entries, opts...)
	if len(l.entries) == 0 {
		return NoLineage{}
	}
	return l
}

// Entries returns a copy of the normalized entries.
func (l *Resolved) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// nearestDeeper returns the entry index of the closest standard rank below r.
func (l *Resolved) nearestDeeper(r Rank) int {
	for d := r + 1; d <= Species; d++ {
		if i := l.byRank[d]; i >= 0 {
			return i
		}
	}
	return -1
}

func (l *Resolved) Taxon(r Rank) (string, bool) {
	if !r.Valid() {
		return "", false
	}
	if i := l.byRank[r]; i >= 0 {
		return l.entries[i].Name, true
	}
	if i := l.nearestDeeper(r); i >= 0 {
		return fmt.Sprintf("%s (%s)", l.entries[i].Name, r), true
	}
	return "", false
}

func (l *Resolved) IsPlaceholder(r Rank) bool {
	if !r.Valid() || l.byRank[r] >= 0 {
		return false
	}
	return l.nearestDeeper(r) >= 0
}

// IsGeneric walks from the shallow end. A generic marker met before any
// standard-ranked node at or below r makes the rank generic.
func (l *Resolved) IsGeneric(r Rank) bool {
	if !r.Valid() {
		return false
	}
	for _, e := range l.entries {
		if l.matcher.Generic(e.Name) {
			return true
		}
		if er, ok := ParseRank(e.Rank); ok && er >= r {
			return false
		}
	}
	return false
}

func (l *Resolved) StandardTaxa(r Rank) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !r.Valid() {
			return
		}
		for _, rk := range Ranks[:r+1] {
			name, ok := l.Taxon(rk)
			if !ok {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

func (l *Resolved) FullTaxa(r Rank) iter.Seq[string] {
	return func(yield func(string) bool) {
		name, ok := l.Taxon(r)
		if !ok {
			return
		}
		stop := l.byRank[r]
		if stop < 0 {
			stop = l.nearestDeeper(r)
		} else {
			stop++
		}
		for _, e := range l.entries[:stop] {
			if !yield(e.Name) {
				return
			}
		}
		if l.byRank[r] < 0 {
			yield(name)
		}
	}
}

// NoLineage stands in for a hit whose taxonomy could not be resolved. It
// answers "no taxon" at every rank.
type NoLineage struct{}

func (NoLineage) Taxon(Rank) (string, bool) { return "", false }
func (NoLineage) IsPlaceholder(Rank) bool   { return false }
func (NoLineage) IsGeneric(Rank) bool       { return false }

func (NoLineage) StandardTaxa(Rank) iter.Seq[string] {
	return func(func(string) bool) {}
}

func (NoLineage) FullTaxa(Rank) iter.Seq[string] {
	return func(func(string) bool) {}
}

// Join concatenates a name sequence with sep.
func Join(seq iter.Seq[string], sep string) string {
	var b strings.Builder
	first := true
	for s := range seq {
		if !first {
			b.WriteString(sep)
		}
		b.WriteString(s)
		first = false
	}
	return b.String()
}
