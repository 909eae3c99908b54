package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/httputil"
)

// CacheHeader reports whether a search response came from the cache.
const CacheHeader = "X-Cache"

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) (*domain.Envelope, error)
}

// SearchHandler handles HTTP requests for the search endpoints.
type SearchHandler struct {
	service  Searcher
	logger   *slog.Logger
	detailed bool
}

// NewSearchHandler creates a new search HTTP handler. detailed exposes
// internal error text in 5xx bodies and is meant for development.
func NewSearchHandler(svc Searcher, logger *slog.Logger, detailed bool) *SearchHandler {
	return &SearchHandler{
		service:  svc,
		logger:   logger,
		detailed: detailed,
	}
}

// Search handles GET /api/search. The query parameter is required; q is
// accepted as an alias.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("query")
	if raw == "" {
		raw = r.URL.Query().Get("q")
	}
	if raw == "" {
		httputil.WriteMessage(w, r, http.StatusBadRequest, "Query parameter is required")
		return
	}
	h.search(w, r, raw)
}

// ProductSearch handles GET /api/products/search. A missing q yields an
// empty result page.
func (h *SearchHandler) ProductSearch(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, r.URL.Query().Get("q"))
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, raw string) {
	q := domain.SearchQuery{
		Query:    raw,
		Page:     httputil.QueryInt(r, "page", 0),
		PageSize: httputil.QueryInt(r, "pageSize", 0),
	}

	env, err := h.service.Search(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger, h.detailed)
		return
	}

	if env.Cached {
		w.Header().Set(CacheHeader, "HIT")
	} else {
		w.Header().Set(CacheHeader, "MISS")
	}
	httputil.WriteJSON(w, http.StatusOK, env)
}
