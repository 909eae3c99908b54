package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/Asdisarson/ss/pkg/errors"
	"github.com/Asdisarson/ss/pkg/httputil"
	"github.com/Asdisarson/ss/pkg/logger"
	"github.com/Asdisarson/ss/pkg/middleware"
)

// CatalogSyncer runs catalog syncs and reports the last completed one.
type CatalogSyncer interface {
	Refresh(ctx context.Context) (time.Time, error)
	LastUpdate() *time.Time
}

// RefreshResponse is the body of POST /api/refresh.
type RefreshResponse struct {
	Success    bool       `json:"success"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// LastUpdateResponse is the body of GET /api/last-update. LastUpdate is
// null until the first sync completes.
type LastUpdateResponse struct {
	LastUpdate *time.Time `json:"lastUpdate"`
}

// CatalogHandler handles HTTP requests for catalog sync endpoints.
type CatalogHandler struct {
	service  CatalogSyncer
	logger   *slog.Logger
	detailed bool
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc CatalogSyncer, logger *slog.Logger, detailed bool) *CatalogHandler {
	return &CatalogHandler{
		service:  svc,
		logger:   logger,
		detailed: detailed,
	}
}

// Refresh handles POST /api/refresh. The sync runs synchronously.
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)
	if sub := middleware.SubjectFromContext(r.Context()); sub != "" {
		log = log.With(slog.String("requested_by", sub))
	}
	log.InfoContext(r.Context(), "manual catalog refresh requested")

	syncedAt, err := h.service.Refresh(r.Context())
	if err != nil {
		status := apperrors.HTTPStatus(err)
		message := err.Error()
		var appErr *apperrors.AppError
		if !h.detailed && errors.As(err, &appErr) {
			message = appErr.Message
		}
		if status >= http.StatusInternalServerError {
			log.ErrorContext(r.Context(), "manual catalog refresh failed",
				slog.String("error", err.Error()),
			)
		}
		httputil.WriteJSON(w, status, RefreshResponse{Success: false, Error: message})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RefreshResponse{Success: true, LastUpdate: &syncedAt})
}

// LastUpdate handles GET /api/last-update.
func (h *CatalogHandler) LastUpdate(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LastUpdateResponse{LastUpdate: h.service.LastUpdate()})
}
