package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/middleware"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/storage"
)

// SquadHandlers manages squads and their Slack webhooks.
type SquadHandlers struct {
	store  SiteStore
	logger *observability.Logger
}

// NewSquadHandlers creates a squad handlers instance
func NewSquadHandlers(store SiteStore, logger *observability.Logger) *SquadHandlers {
	return &SquadHandlers{store: store, logger: logger}
}

// RegisterRoutes registers squad routes. Listing is open to every
// authenticated user; mutations are admin-only.
func (h *SquadHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/squads", h.list).Methods("GET")
	router.Handle("/squads", middleware.RequireAdmin(http.HandlerFunc(h.create))).Methods("POST")
	router.Handle("/squads/{name}", middleware.RequireAdmin(http.HandlerFunc(h.update))).Methods("PUT")
	router.Handle("/squads/{name}", middleware.RequireAdmin(http.HandlerFunc(h.delete))).Methods("DELETE")
}

// list handles GET /api/squads
func (h *SquadHandlers) list(w http.ResponseWriter, r *http.Request) {
	squads, err := h.store.Squads(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list squads")
		httputil.WriteInternalError(w, "Failed to list squads")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"squads": squads,
		"total":  len(squads),
	})
}

// create handles POST /api/squads
func (h *SquadHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		WebhookURL string `json:"webhook_url"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "Field name is required")
		return
	}

	squad, err := h.store.CreateSquad(r.Context(), req.Name, req.WebhookURL)
	switch {
	case err == nil:
		httputil.WriteCreated(w, "Squad created", squad)
	case errors.Is(err, storage.ErrSquadExists):
		httputil.WriteConflict(w, "Squad already exists")
	default:
		h.logger.WithError(err).Error("failed to create squad")
		httputil.WriteInternalError(w, "Failed to create squad")
	}
}

// update handles PUT /api/squads/{name}
func (h *SquadHandlers) update(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var req struct {
		NewName    *string `json:"new_name"`
		WebhookURL *string `json:"webhook_url"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.NewName == nil && req.WebhookURL == nil {
		httputil.WriteBadRequest(w, "Nothing to update")
		return
	}
	if req.NewName != nil && *req.NewName == "" {
		httputil.WriteBadRequest(w, "Field new_name cannot be empty")
		return
	}

	err := h.store.UpdateSquad(r.Context(), name, req.NewName, req.WebhookURL)
	switch {
	case err == nil:
		httputil.WriteSuccessMessage(w, "Squad updated", nil)
	case errors.Is(err, storage.ErrSquadNotFound):
		httputil.WriteNotFound(w, "Squad not found")
	case errors.Is(err, storage.ErrSquadExists):
		httputil.WriteConflict(w, "Squad already exists")
	default:
		h.logger.WithError(err).Error("failed to update squad")
		httputil.WriteInternalError(w, "Failed to update squad")
	}
}

// delete handles DELETE /api/squads/{name}. A squad with sites attached is
// never deleted.
func (h *SquadHandlers) delete(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	err := h.store.DeleteSquad(r.Context(), name)
	var inUse *storage.SquadInUseError
	switch {
	case err == nil:
		httputil.WriteSuccessMessage(w, "Squad deleted", nil)
	case errors.As(err, &inUse):
		httputil.WriteBadRequest(w, fmt.Sprintf("Squad has %d site(s) attached and cannot be deleted", inUse.Sites))
	case errors.Is(err, storage.ErrSquadNotFound):
		httputil.WriteNotFound(w, "Squad not found")
	default:
		h.logger.WithError(err).Error("failed to delete squad")
		httputil.WriteInternalError(w, "Failed to delete squad")
	}
}
