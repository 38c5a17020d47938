package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/observability"
)

// DashboardHandlers serves the aggregate numbers and the activity feed the
// dashboard landing page renders.
type DashboardHandlers struct {
	store  SiteStore
	logger *observability.Logger
}

// NewDashboardHandlers creates a dashboard handlers instance
func NewDashboardHandlers(store SiteStore, logger *observability.Logger) *DashboardHandlers {
	return &DashboardHandlers{store: store, logger: logger}
}

// RegisterRoutes registers dashboard routes.
func (h *DashboardHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/stats", h.stats).Methods("GET")
	router.HandleFunc("/dashboard/logs", h.logs).Methods("GET")
}

// stats handles GET /api/dashboard/stats
func (h *DashboardHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to load dashboard stats")
		httputil.WriteInternalError(w, "Failed to load stats")
		return
	}
	httputil.WriteSuccess(w, stats)
}

// logs handles GET /api/dashboard/logs?limit=
func (h *DashboardHandlers) logs(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	logs, err := h.store.RecentLogs(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to load processing logs")
		httputil.WriteInternalError(w, "Failed to load logs")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"logs": logs,
	})
}
