// Package models defines the value types shared by the parsers, the assigner and the API.
package models

// Hit is one database search hit for a query sequence.
type Hit struct {
	Accession string  `json:"accession"`
	PctID     float64 `json:"pct_id"`
	Length    float64 `json:"length"`
}

// Coverage is the alignment length as a fraction of the query length.
// A non-positive query length yields zero coverage.
func (h Hit) Coverage(queryLen int) float64 {
	if queryLen <= 0 {
		return 0
	}
	return h.Length / float64(queryLen)
}

// Query is one input sequence.
type Query struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}
