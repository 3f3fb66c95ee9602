package taxon

import (
	"encoding/json"
	"testing"
)

func TestParseRank(t *testing.T) {
	tests := []struct {
		in   string
		want Rank
		ok   bool
	}{
		{"species", Species, true},
		{"Genus", Genus, true},
		{" class ", Class, true},
		{"superkingdom", Superkingdom, true},
		{"domain", Superkingdom, true},
		{"no rank", 0, false},
		{"subphylum", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRank(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseRank(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRank_Order(t *testing.T) {
	if len(Ranks) != 8 {
		t.Fatalf("expected 8 ranks, got %d", len(Ranks))
	}
	for i := 1; i < len(Ranks); i++ {
		if Ranks[i] <= Ranks[i-1] {
			t.Errorf("rank %s should be narrower than %s", Ranks[i], Ranks[i-1])
		}
	}
	nf := NarrowestFirst()
	if nf[0] != Species || nf[len(nf)-1] != Superkingdom {
		t.Errorf("NarrowestFirst() = %v", nf)
	}
	if b, ok := Genus.Broader(); !ok || b != Family {
		t.Errorf("Genus.Broader() = %v, %v", b, ok)
	}
	if _, ok := Superkingdom.Broader(); ok {
		t.Error("superkingdom has no broader rank")
	}
}

func TestRank_TextMapKeys(t *testing.T) {
	in := map[Rank]float64{Species: 0.6, Superkingdom: 0.9}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out map[Rank]float64
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out[Species] != 0.6 || out[Superkingdom] != 0.9 {
		t.Errorf("round trip lost values: %s -> %v", data, out)
	}
	if err := json.Unmarshal([]byte(`{"tribe": 0.5}`), &out); err == nil {
		t.Error("expected error for unknown rank key")
	}
}
