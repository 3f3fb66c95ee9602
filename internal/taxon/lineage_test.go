package taxon

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidaEntries() []Entry {
	return []Entry{
		{"cellular organisms", "no rank"},
		{"Eukaryota", "superkingdom"},
		{"Opisthokonta", "clade"},
		{"Fungi", "kingdom"},
		{"Dikarya", "subkingdom"},
		{"Ascomycota", "phylum"},
		{"saccharomyceta", "clade"},
		{"Saccharomycotina", "subphylum"},
		{"Saccharomycetes", "class"},
		{"Saccharomycetales", "order"},
		{"mitosporic Saccharomycetales", "no rank"},
		{"Candida", "genus"},
		{"Candida albicans", "species"},
	}
}

func uncultured() []Entry {
	return []Entry{
		{"cellular organisms", "no rank"},
		{"Eukaryota", "superkingdom"},
		{"Opisthokonta", "clade"},
		{"Fungi", "kingdom"},
		{"environmental samples", "no rank"},
		{"uncultured fungus", "species"},
	}
}

func TestResolved_MissingFamily(t *testing.T) {
	l := New(candidaEntries())

	name, ok := l.Taxon(Family)
	require.True(t, ok)
	assert.Equal(t, "Candida (family)", name)
	assert.True(t, l.IsPlaceholder(Family))

	name, ok = l.Taxon(Genus)
	require.True(t, ok)
	assert.Equal(t, "Candida", name)
	assert.False(t, l.IsPlaceholder(Genus))

	name, _ = l.Taxon(Species)
	assert.Equal(t, "Candida albicans", name)
}

func TestResolved_PlaceholderUsesNearestDeeperRank(t *testing.T) {
	l := New([]Entry{
		{"Bacteria", "superkingdom"},
		{"Firmicutes", "phylum"},
		{"Clostridia", "class"},
		{"Natronoanaerobium aggerbacterium", "species"},
	})
	for _, r := range []Rank{Order, Family, Genus} {
		name, ok := l.Taxon(r)
		require.True(t, ok, r.String())
		assert.Equal(t, "Natronoanaerobium aggerbacterium ("+r.String()+")", name)
	}
	name, _ := l.Taxon(Kingdom)
	assert.Equal(t, "Firmicutes (kingdom)", name)
	name, _ = l.Taxon(Class)
	assert.Equal(t, "Clostridia", name)
}

func TestResolved_NoPlaceholderBelowDeepestRank(t *testing.T) {
	entries := candidaEntries()
	entries = entries[:len(entries)-2] // drop genus and species
	l := New(entries)

	for _, r := range []Rank{Family, Genus, Species} {
		_, ok := l.Taxon(r)
		assert.False(t, ok, r.String())
		assert.False(t, l.IsPlaceholder(r), r.String())
	}
	name, ok := l.Taxon(Order)
	require.True(t, ok)
	assert.Equal(t, "Saccharomycetales", name)
}

func TestResolved_GenusTerminalHasNoSpecies(t *testing.T) {
	entries := candidaEntries()
	l := New(entries[:len(entries)-1])

	name, ok := l.Taxon(Species)
	assert.False(t, ok)
	assert.Equal(t, "", name)
	assert.False(t, l.IsPlaceholder(Species))

	name, ok = l.Taxon(Genus)
	require.True(t, ok)
	assert.Equal(t, "Candida", name)
}

func TestResolved_StandardTaxa(t *testing.T) {
	l := New(candidaEntries())
	want := []string{
		"Eukaryota", "Fungi", "Ascomycota", "Saccharomycetes",
		"Saccharomycetales", "Candida (family)", "Candida", "Candida albicans",
	}
	if diff := cmp.Diff(want, slices.Collect(l.StandardTaxa(Species))); diff != "" {
		t.Errorf("StandardTaxa(species) mismatch (-want +got):\n%s", diff)
	}
	// a second call recomputes the same sequence
	if diff := cmp.Diff(want, slices.Collect(l.StandardTaxa(Species))); diff != "" {
		t.Errorf("second StandardTaxa(species) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want[:3], slices.Collect(l.StandardTaxa(Phylum))); diff != "" {
		t.Errorf("StandardTaxa(phylum) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolved_FullTaxa(t *testing.T) {
	l := New(candidaEntries())
	var want []string
	for _, e := range candidaEntries() {
		want = append(want, e.Name)
	}
	if diff := cmp.Diff(want, slices.Collect(l.FullTaxa(Species))); diff != "" {
		t.Errorf("FullTaxa(species) mismatch (-want +got):\n%s", diff)
	}

	wantFamily := append(append([]string(nil), want[:11]...), "Candida (family)")
	if diff := cmp.Diff(wantFamily, slices.Collect(l.FullTaxa(Family))); diff != "" {
		t.Errorf("FullTaxa(family) mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(want[:6], slices.Collect(l.FullTaxa(Phylum))); diff != "" {
		t.Errorf("FullTaxa(phylum) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolved_IsGeneric(t *testing.T) {
	t.Run("environmental samples marker", func(t *testing.T) {
		l := New(uncultured())
		assert.False(t, l.IsGeneric(Superkingdom))
		assert.False(t, l.IsGeneric(Kingdom))
		assert.True(t, l.IsGeneric(Phylum))
		assert.True(t, l.IsGeneric(Genus))
		assert.True(t, l.IsGeneric(Species))

		name, ok := l.Taxon(Genus)
		require.True(t, ok)
		assert.Equal(t, "uncultured fungus (genus)", name)
	})

	t.Run("unclassified prefix", func(t *testing.T) {
		l := New([]Entry{
			{"Eukaryota", "superkingdom"},
			{"Fungi", "kingdom"},
			{"unclassified Fungi", "no rank"},
			{"Fungi sp. 12", "species"},
		})
		assert.False(t, l.IsGeneric(Kingdom))
		assert.True(t, l.IsGeneric(Species))
	})

	t.Run("concrete lineage", func(t *testing.T) {
		l := New(candidaEntries())
		for _, r := range Ranks {
			assert.False(t, l.IsGeneric(r), r.String())
		}
	})

	t.Run("extra prefixes", func(t *testing.T) {
		entries := []Entry{{"marine sediment isolate 7", "species"}}
		assert.False(t, New(entries).IsGeneric(Species))
		l := New(entries, WithMatcher(DefaultMatcher().WithPrefixes("marine sediment", " ")))
		assert.True(t, l.IsGeneric(Species))
	})

	t.Run("generic name at the rank itself", func(t *testing.T) {
		l := New([]Entry{
			{"Eukaryota", "superkingdom"},
			{"Fungi", "kingdom"},
			{"uncultured fungus", "genus"},
		})
		assert.False(t, l.IsGeneric(Kingdom))
		assert.True(t, l.IsGeneric(Genus))
	})
}

func TestMatcher_Generic(t *testing.T) {
	m := DefaultMatcher()
	tests := []struct {
		name string
		want bool
	}{
		{"environmental samples", true},
		{"uncultured fungus", true},
		{"Uncultured Agaricomycotina clone", true},
		{"unidentified bacterium", true},
		{"unclassified Fungi", true},
		{"fungal sp. ARIZ 42", true},
		{"vouchered mycorrhizae (Basidiomycota)", true},
		{"uncultivated bacterium", true},
		{"Unknown eubacterium", true},
		{"Candida", false},
		{"Phaeosphaeria sp. X1", false},
		{"mitosporic Saccharomycetales", false},
	}
	for _, tt := range tests {
		if got := m.Generic(tt.name); got != tt.want {
			t.Errorf("Generic(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFromEntries(t *testing.T) {
	assert.Equal(t, NoLineage{}, FromEntries(nil))
	assert.Equal(t, NoLineage{}, FromEntries([]Entry{{Name: " ", Rank: "genus"}}))

	l := FromEntries([]Entry{{Name: "Bacteria", Rank: "domain"}})
	name, ok := l.Taxon(Superkingdom)
	require.True(t, ok)
	assert.Equal(t, "Bacteria", name)
}

func TestNoLineage(t *testing.T) {
	var l Lineage = NoLineage{}
	for _, r := range Ranks {
		_, ok := l.Taxon(r)
		assert.False(t, ok)
		assert.False(t, l.IsGeneric(r))
		assert.False(t, l.IsPlaceholder(r))
		assert.Empty(t, slices.Collect(l.StandardTaxa(r)))
		assert.Empty(t, slices.Collect(l.FullTaxa(r)))
	}
}

func TestJoin(t *testing.T) {
	l := New(candidaEntries())
	assert.Equal(t, "Eukaryota;Fungi;Ascomycota", Join(l.StandardTaxa(Phylum), ";"))
	assert.Equal(t, "", Join(NoLineage{}.StandardTaxa(Species), ";"))
}
