package taxon

import "strings"

// genericWords mark a name as generic wherever they appear, ignoring case.
var genericWords = []string{
	"uncultured", "unclassified", "unidentified", "fungal sp.",
	"fungal endophyte", "root associated fungus", "ectomycorrhizal fungus",
	"endophytic basidiomycete", "soil zygomycete", "vouchered", "fungal contaminant",
	"basidiomycete sp.", "basidiomycota sp.", "ascomycota sp.", "ascomycete strain",
}

// genericNames are generic names not caught by genericWords.
var genericNames = []string{
	"environmental samples",
	"uncultivated bacterium",
	"unknown bacteria",
	"Unknown eubacteria",
	"Unknown eubacterium",
}

// Matcher recognizes generic taxon names: placeholders for unidentified,
// uncultured or environmental material that carry no classification.
type Matcher struct {
	exact    []string
	words    []string
	prefixes []string
}

// DefaultMatcher matches the NCBI names used for uncultured, unidentified and
// environmental submissions, such as "environmental samples",
// "uncultured fungus" and "unclassified Fungi".
func DefaultMatcher() Matcher {
	return Matcher{
		exact: genericNames,
		words: genericWords,
	}
}

// WithPrefixes returns a copy of m that also matches the given name prefixes.
// Blank prefixes are ignored. Prefixes are case-sensitive.
func (m Matcher) WithPrefixes(prefixes ...string) Matcher {
	out := Matcher{
		exact:    m.exact,
		words:    m.words,
		prefixes: append([]string(nil), m.prefixes...),
	}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			out.prefixes = append(out.prefixes, p)
		}
	}
	return out
}

// Generic reports whether name is a generic marker.
func (m Matcher) Generic(name string) bool {
	for _, e := range m.exact {
		if name == e {
			return true
		}
	}
	if len(m.words) > 0 {
		lower := strings.ToLower(name)
		for _, w := range m.words {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
