package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/models"
	"github.com/hyperjump/brocc/internal/runner"
	"github.com/hyperjump/brocc/internal/taxon"
	"github.com/hyperjump/brocc/internal/taxonomy"
)

// LineageResponse is the body of a lineage lookup.
type LineageResponse struct {
	Accession string        `json:"accession"`
	TaxonID   string        `json:"taxon_id"`
	Entries   []taxon.Entry `json:"entries"`
	Lineage   string        `json:"lineage"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("classify request", zap.String("query", req.QueryID), zap.Int("hits", len(req.Hits)))
	res := s.assigner.Assign(r.Context(), req.QueryID, req.QueryLen(), req.Hits)
	s.respondJSON(w, http.StatusOK, &models.ClassifyResponse{
		RequestID: middleware.GetReqID(r.Context()),
		Result:    assign.Summarize(res),
	})
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	inputs := make([]runner.Input, len(req.Queries))
	for i, q := range req.Queries {
		inputs[i] = runner.Input{ID: q.QueryID, QueryLen: q.QueryLen(), Hits: q.Hits}
	}
	s.logger.Debug("batch classify request", zap.Int("queries", len(inputs)))
	results, err := runner.ClassifyAll(r.Context(), s.assigner, inputs, s.config.Workers)
	if err != nil {
		s.logger.Error("batch classification failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	out := make([]*models.Classification, len(results))
	for i, res := range results {
		out[i] = assign.Summarize(res)
	}
	s.respondJSON(w, http.StatusOK, &models.BatchClassifyResponse{
		RequestID: middleware.GetReqID(r.Context()),
		Results:   out,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	accession := chi.URLParam(r, "accession")
	taxID, err := s.source.TaxonID(r.Context(), accession)
	if err != nil {
		s.respondLookupError(w, "accession not found", err)
		return
	}
	entries, err := s.source.Lineage(r.Context(), taxID)
	if err != nil {
		s.respondLookupError(w, "lineage not found", err)
		return
	}
	lineage := taxon.FromEntries(entries, taxon.WithMatcher(
		taxon.DefaultMatcher().WithPrefixes(s.assigner.Options().GenericPrefixes...)))
	s.respondJSON(w, http.StatusOK, &LineageResponse{
		Accession: accession,
		TaxonID:   taxID,
		Entries:   entries,
		Lineage:   taxon.Join(lineage.StandardTaxa(taxon.Species), ";"),
	})
}

func (s *Server) respondLookupError(w http.ResponseWriter, notFound string, err error) {
	if errors.Is(err, taxonomy.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("taxonomy lookup failed", zap.Error(err))
	s.respondError(w, http.StatusBadGateway, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	opts := s.assigner.Options()
	consensus := make(map[string]float64, len(taxon.Ranks))
	for _, rank := range taxon.Ranks {
		consensus[rank.String()] = opts.Policy(rank).Consensus
	}
	resp := map[string]interface{}{
		"thresholds": map[string]interface{}{
			"min_id":            opts.MinID,
			"min_cover":         opts.MinCover,
			"min_species_id":    opts.MinSpeciesID,
			"min_genus_id":      opts.MinGenusID,
			"min_winning_votes": opts.MinWinningVotes,
			"consensus":         consensus,
		},
		"workers": s.config.Workers,
	}
	if sized, ok := s.source.(interface{ Len() int }); ok {
		resp["cache_entries"] = sized.Len()
	}

	// Report the source actually wired, looking through the lookup cache.
	var source assign.TaxonomySource = s.source
	if wrapped, ok := source.(interface{ Source() taxonomy.Source }); ok {
		source = wrapped.Source()
	}
	if db, ok := source.(interface{ Path() string }); ok {
		info := map[string]interface{}{
			"source":        "sqlite",
			"database_path": db.Path(),
		}
		if diskBytes, err := taxonomy.DiskUsageBytes(taxonomy.DatabaseFiles(db.Path())...); err == nil {
			info["disk_usage_bytes"] = diskBytes
		}
		resp["taxonomy"] = info
	} else {
		resp["taxonomy"] = map[string]interface{}{
			"source":     "eutils",
			"eutils_url": s.config.Taxonomy.EUtilsURL,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
