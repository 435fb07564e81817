package api

import (
	"net/http"

	"machtms/internal/auth"
	apperrors "machtms/internal/errors"
	"machtms/internal/search"
)

func (s *Server) registerSearchRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/search", s.handle("search.query", s.searchQuery))
}

var searchIndexes = map[string]search.Index{
	"loads":     search.IndexLoads,
	"addresses": search.IndexAddresses,
	"customers": search.IndexCustomers,
	"carriers":  search.IndexCarriers,
}

func (s *Server) searchQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		writeError(w, apperrors.New(apperrors.CodeInitializationFailure, "search is not configured"))
		return
	}
	q := r.URL.Query()
	name := q.Get("index")
	if name == "" {
		name = "loads"
	}
	index, ok := searchIndexes[name]
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "unknown search index "+name))
		return
	}
	hits, err := s.deps.Search.Query(r.Context(), auth.OrgFromContext(r.Context()),
		index, q.Get("q"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}
