package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/middleware"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/storage"
)

// SiteHandlers handles site configuration endpoints.
type SiteHandlers struct {
	store  SiteStore
	sheets SheetSource
	logger *observability.Logger
}

// NewSiteHandlers creates a site handlers instance
func NewSiteHandlers(store SiteStore, sheetSrc SheetSource, logger *observability.Logger) *SiteHandlers {
	return &SiteHandlers{store: store, sheets: sheetSrc, logger: logger}
}

// RegisterRoutes registers site routes. Reads are open to every
// authenticated user; mutations are admin-only.
func (h *SiteHandlers) RegisterRoutes(router *mux.Router) {
	admin := func(fn http.HandlerFunc) http.Handler { return middleware.RequireAdmin(fn) }

	router.HandleFunc("/sites", h.list).Methods("GET")
	router.Handle("/sites", admin(h.create)).Methods("POST")

	// The test route must precede the by-name route so "test" never binds as
	// a site name.
	router.HandleFunc("/sites/test/{name}", h.testMapping).Methods("GET")

	router.HandleFunc("/sites/{id:[0-9]+}", h.getByID).Methods("GET")
	router.Handle("/sites/{id:[0-9]+}", admin(h.updateByID)).Methods("PUT")
	router.Handle("/sites/{id:[0-9]+}", admin(h.deleteByID)).Methods("DELETE")

	router.HandleFunc("/sites/{name}", h.getByName).Methods("GET")
	router.Handle("/sites/{name}", admin(h.deleteByName)).Methods("DELETE")
}

type siteRequest struct {
	Name          string  `json:"name"`
	SheetURL      string  `json:"sheet_url"`
	InvestmentIdx *int    `json:"investment_idx"`
	RevenueIdx    *int    `json:"revenue_idx"`
	ROASIdx       *int    `json:"roas_idx"`
	MarginIdx     *int    `json:"margin_idx"`
	Squad         *string `json:"squad_name"`
	Status        *string `json:"status"`
}

// list handles GET /api/sites with optional name and squad filters.
func (h *SiteHandlers) list(w http.ResponseWriter, r *http.Request) {
	filter := storage.SiteFilter{
		Name:  httputil.ParseQueryString(r, "name", ""),
		Squad: httputil.ParseQueryString(r, "squad", ""),
	}
	sites, err := h.store.ListSites(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("failed to list sites")
		httputil.WriteInternalError(w, "Failed to list sites")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"sites": sites,
		"total": len(sites),
	})
}

// create handles POST /api/sites as an upsert by name.
func (h *SiteHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.SheetURL == "" {
		httputil.WriteBadRequest(w, "Fields name and sheet_url are required")
		return
	}
	if req.InvestmentIdx == nil || req.RevenueIdx == nil || req.ROASIdx == nil || req.MarginIdx == nil {
		httputil.WriteBadRequest(w, "Fields investment_idx, revenue_idx, roas_idx and margin_idx are required")
		return
	}

	in := storage.SiteInput{
		Name:     req.Name,
		SheetURL: req.SheetURL,
		Columns: storage.MetricColumns{
			Investment: *req.InvestmentIdx,
			Revenue:    *req.RevenueIdx,
			ROAS:       *req.ROASIdx,
			Margin:     *req.MarginIdx,
		},
	}
	if req.Squad != nil {
		in.Squad = *req.Squad
	}
	if req.Status != nil {
		in.Status = *req.Status
	}

	site, err := h.store.UpsertSite(r.Context(), in)
	if err != nil {
		h.logger.WithError(err).WithField("site", req.Name).Error("failed to save site")
		httputil.WriteInternalError(w, "Failed to save site")
		return
	}
	httputil.WriteCreated(w, "Site saved", site)
}

// getByID handles GET /api/sites/{id}
func (h *SiteHandlers) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	site, err := h.store.SiteByID(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("failed to load site")
		httputil.WriteInternalError(w, "Failed to load site")
		return
	}
	if site == nil {
		httputil.WriteNotFound(w, "Site not found")
		return
	}
	httputil.WriteSuccess(w, site)
}

// updateByID handles PUT /api/sites/{id}. A patch with no recognized fields
// still reports success.
func (h *SiteHandlers) updateByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req siteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	patch := storage.SitePatch{
		Squad:  req.Squad,
		Status: req.Status,
	}
	if req.SheetURL != "" {
		patch.SheetURL = &req.SheetURL
	}
	if req.InvestmentIdx != nil || req.RevenueIdx != nil || req.ROASIdx != nil || req.MarginIdx != nil {
		current, err := h.store.SiteByID(r.Context(), id)
		if err != nil {
			h.logger.WithError(err).Error("failed to load site for update")
			httputil.WriteInternalError(w, "Failed to update site")
			return
		}
		if current == nil {
			httputil.WriteNotFound(w, "Site not found")
			return
		}
		cols := current.Columns
		if req.InvestmentIdx != nil {
			cols.Investment = *req.InvestmentIdx
		}
		if req.RevenueIdx != nil {
			cols.Revenue = *req.RevenueIdx
		}
		if req.ROASIdx != nil {
			cols.ROAS = *req.ROASIdx
		}
		if req.MarginIdx != nil {
			cols.Margin = *req.MarginIdx
		}
		patch.Columns = &cols
	}

	result, err := h.store.UpdateSite(r.Context(), id, patch)
	if err != nil {
		h.logger.WithError(err).Error("failed to update site")
		httputil.WriteInternalError(w, "Failed to update site")
		return
	}
	if result == storage.UpdateNotFound {
		httputil.WriteNotFound(w, "Site not found")
		return
	}

	site, err := h.store.SiteByID(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("failed to reload updated site")
		httputil.WriteInternalError(w, "Failed to load site")
		return
	}
	httputil.WriteSuccessMessage(w, "Site updated", site)
}

// deleteByID handles DELETE /api/sites/{id}
func (h *SiteHandlers) deleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	h.finishDelete(w, h.store.DeleteSiteByID(r.Context(), id))
}

// getByName handles GET /api/sites/{name}
func (h *SiteHandlers) getByName(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	cfg, err := h.store.SiteConfigByName(r.Context(), name)
	if err != nil {
		h.logger.WithError(err).Error("failed to load site")
		httputil.WriteInternalError(w, "Failed to load site")
		return
	}
	if cfg == nil {
		httputil.WriteNotFound(w, "Site not found")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"name":        cfg.Site.Name,
		"sheet_url":   cfg.Site.SheetURL,
		"indices":     cfg.Site.Columns,
		"squad_name":  cfg.Site.Squad,
		"status":      cfg.Site.Status,
		"has_webhook": cfg.WebhookURL != "",
	})
}

// deleteByName handles DELETE /api/sites/{name}
func (h *SiteHandlers) deleteByName(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	h.finishDelete(w, h.store.DeleteSiteByName(r.Context(), name))
}

func (h *SiteHandlers) finishDelete(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		httputil.WriteSuccessMessage(w, "Site deleted", nil)
	case errors.Is(err, storage.ErrSiteNotFound):
		httputil.WriteNotFound(w, "Site not found")
	default:
		h.logger.WithError(err).Error("failed to delete site")
		httputil.WriteInternalError(w, "Failed to delete site")
	}
}

// testMapping handles GET /api/sites/test/{name}?sheet=N: a dry run of the
// metric mapping against live sheet data, without posting anywhere.
func (h *SiteHandlers) testMapping(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	sheetIndex, err := httputil.ParseQueryInt(r, "sheet", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	cfg, err := h.store.SiteConfigByName(r.Context(), name)
	if err != nil {
		h.logger.WithError(err).Error("failed to load site")
		httputil.WriteInternalError(w, "Failed to load site")
		return
	}
	if cfg == nil {
		httputil.WriteNotFound(w, "Site not found")
		return
	}
	if cfg.Site.SheetURL == "" {
		httputil.WriteBadRequest(w, "Site has no sheet URL configured")
		return
	}

	spreadsheetID, err := sheets.SpreadsheetIDFromURL(cfg.Site.SheetURL)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	worksheets, err := h.sheets.Worksheets(r.Context(), spreadsheetID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list worksheets")
		httputil.WriteInternalError(w, "Failed to read spreadsheet")
		return
	}
	sheetName := ""
	if sheetIndex >= 0 && sheetIndex < len(worksheets) {
		sheetName = worksheets[sheetIndex].Name
	} else if len(worksheets) > 0 {
		sheetName = worksheets[0].Name
	}

	rows, err := h.sheets.Values(r.Context(), spreadsheetID, sheetName)
	if err != nil {
		h.logger.WithError(err).Error("failed to read sheet values")
		httputil.WriteInternalError(w, "Failed to read spreadsheet")
		return
	}
	if len(rows) < 2 {
		httputil.WriteBadRequest(w, "Sheet is empty or has no data")
		return
	}

	headerIdx := sheets.HeaderRowIndex(rows)
	latest := sheets.LatestRow(rows)
	results := sheets.MapMetrics(rows[headerIdx], latest, []sheets.MetricIndex{
		{Name: "Investment", Index: cfg.Site.Columns.Investment},
		{Name: "Revenue", Index: cfg.Site.Columns.Revenue},
		{Name: "ROAS", Index: cfg.Site.Columns.ROAS},
		{Name: "MC", Index: cfg.Site.Columns.Margin},
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"site":       name,
		"sheet":      sheetName,
		"total_rows": len(rows) - headerIdx - 1,
		"last_row":   len(rows),
		"results":    results,
	})
}
