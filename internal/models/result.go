package models

// CandidateVote is one contender of the deciding voting round.
type CandidateVote struct {
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// Classification is the flattened outcome for one query, as written to JSON
// output and returned by the API.
type Classification struct {
	QueryID      string          `json:"query_id"`
	Assigned     bool            `json:"assigned"`
	Taxon        string          `json:"taxon,omitempty"`
	Rank         string          `json:"rank,omitempty"`
	Lineage      string          `json:"lineage,omitempty"`
	FullLineage  string          `json:"full_lineage,omitempty"`
	WinnerVotes  int             `json:"winner_votes,omitempty"`
	TotalVotes   int             `json:"total_votes,omitempty"`
	GenericVotes int             `json:"generic_votes,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Candidates   []CandidateVote `json:"candidates,omitempty"`
}

// ClassifyResponse wraps a classification with the id of the request that produced it.
type ClassifyResponse struct {
	RequestID string          `json:"request_id"`
	Result    *Classification `json:"result"`
}

// BatchClassifyResponse holds the results of a batch request in input order.
type BatchClassifyResponse struct {
	RequestID string            `json:"request_id"`
	Results   []*Classification `json:"results"`
	QueryTime int64             `json:"query_time_ms"`
}

// RunSummary describes one batch classification run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Queries    int            `json:"queries"`
	Assigned   int            `json:"assigned"`
	ByRank     map[string]int `json:"by_rank"`
	Unassigned map[string]int `json:"unassigned"`
	OutputDir  string         `json:"output_dir,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}
