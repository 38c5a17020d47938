package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/sheets"
)

// SheetHandlers answers spreadsheet inspection requests used by the UI when
// an operator wires up a new site.
type SheetHandlers struct {
	sheets SheetSource
	logger *observability.Logger
}

// NewSheetHandlers creates a sheet handlers instance
func NewSheetHandlers(sheetSrc SheetSource, logger *observability.Logger) *SheetHandlers {
	return &SheetHandlers{sheets: sheetSrc, logger: logger}
}

// RegisterRoutes registers the sheet inspection routes.
func (h *SheetHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sheets/headers", h.headers).Methods("POST")
	router.HandleFunc("/sheets/headers/{sheet_name}", h.headers).Methods("POST")
}

// headers handles POST /api/sheets/headers[/{sheet_name}]: lists the
// spreadsheet's worksheets and the header columns of one of them, so the
// operator can pick metric column indices.
func (h *SheetHandlers) headers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SheetURL string `json:"sheet_url"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SheetURL == "" {
		httputil.WriteBadRequest(w, "Field sheet_url is required")
		return
	}

	spreadsheetID, err := sheets.SpreadsheetIDFromURL(req.SheetURL)
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

	sheetName := mux.Vars(r)["sheet_name"]
	if sheetName == "" && len(worksheets) > 0 {
		sheetName = worksheets[0].Name
	}

	rows, err := h.sheets.Values(r.Context(), spreadsheetID, sheetName)
	if err != nil {
		h.logger.WithError(err).Error("failed to read sheet values")
		httputil.WriteInternalError(w, "Failed to read spreadsheet")
		return
	}

	headers := sheets.Headers(rows)
	totalColumns := 0
	if len(rows) > 0 {
		totalColumns = len(rows[sheets.HeaderRowIndex(rows)])
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"sheets":             worksheets,
		"sheet":              sheetName,
		"headers_with_index": headers,
		"total_columns":      totalColumns,
	})
}
