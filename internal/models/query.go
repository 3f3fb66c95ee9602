package models

import "fmt"

// MaxBatchQueries caps the number of queries accepted in one batch request.
const MaxBatchQueries = 1000

// ClassifyRequest asks for the classification of one query from its hits.
// Either Sequence or QueryLength supplies the query length used for coverage.
type ClassifyRequest struct {
	QueryID     string `json:"query_id"`
	Sequence    string `json:"sequence,omitempty"`
	QueryLength int    `json:"query_length,omitempty"`
	Hits        []Hit  `json:"hits"`
}

// Validate checks the request. A request with hits must carry a query length.
func (r *ClassifyRequest) Validate() error {
	if r.QueryID == "" {
		return fmt.Errorf("query_id cannot be empty")
	}
	if len(r.Hits) > 0 && r.QueryLen() <= 0 {
		return fmt.Errorf("query %s: sequence or query_length is required", r.QueryID)
	}
	for i, h := range r.Hits {
		if h.Accession == "" {
			return fmt.Errorf("query %s: hit %d has no accession", r.QueryID, i)
		}
		if h.PctID < 0 || h.PctID > 100 {
			return fmt.Errorf("query %s: hit %d pct_id %.2f out of range", r.QueryID, i, h.PctID)
		}
	}
	return nil
}

// QueryLen returns the sequence length, falling back to QueryLength.
func (r *ClassifyRequest) QueryLen() int {
	if r.Sequence != "" {
		return len(r.Sequence)
	}
	return r.QueryLength
}

// BatchClassifyRequest holds several classification requests.
type BatchClassifyRequest struct {
	Queries []ClassifyRequest `json:"queries"`
}

// Validate checks every query and the batch size.
func (b *BatchClassifyRequest) Validate() error {
	if len(b.Queries) == 0 {
		return fmt.Errorf("queries cannot be empty")
	}
	if len(b.Queries) > MaxBatchQueries {
		return fmt.Errorf("too many queries: %d (max %d)", len(b.Queries), MaxBatchQueries)
	}
	for i := range b.Queries {
		if err := b.Queries[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
