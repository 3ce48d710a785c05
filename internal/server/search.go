package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/moderation"
)

// maxSearchK caps the per-request result count for POST /api/search.
const maxSearchK = 50

// handleSearch handles POST /api/search: retrieval only, no generation.
// Answers 503 when the index could not be built at startup.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if !moderation.Allowed(query) {
		s.metrics.moderationBlockedTotal.Inc()
		writeJSONError(w, http.StatusBadRequest, moderation.BlockedMessage)
		return
	}
	if s.index == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Search system unavailable")
		return
	}

	k := req.K
	if k <= 0 {
		k = s.cfg.SearchTopK
	}
	if k > maxSearchK {
		k = maxSearchK
	}

	scored, err := s.index.SearchWithScores(r.Context(), query, k)
	if err != nil {
		log.Error("search: index query failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(scored))}
	for _, sd := range scored {
		resp.Results = append(resp.Results, searchResult{
			Content:     sd.Content,
			Source:      sd.Source,
			Page:        sd.Metadata.Page,
			ContentType: sd.Metadata.ContentType,
			Chapter:     sd.Metadata.Chapter,
			Score:       sd.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
