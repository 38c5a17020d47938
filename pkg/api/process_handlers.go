package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/observability"
)

// ProcessHandlers exposes the manual push trigger.
type ProcessHandlers struct {
	push   PushStarter
	logger *observability.Logger
}

// NewProcessHandlers creates a process handlers instance
func NewProcessHandlers(pushSvc PushStarter, logger *observability.Logger) *ProcessHandlers {
	return &ProcessHandlers{push: pushSvc, logger: logger}
}

// RegisterRoutes registers the processing routes.
func (h *ProcessHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/process/manual", h.manual).Methods("POST")
}

// manual handles POST /api/process/manual. The run is detached from the
// request: it outlives the HTTP exchange and reports through processing logs.
func (h *ProcessHandlers) manual(w http.ResponseWriter, r *http.Request) {
	logger := h.logger
	go func() {
		result, err := h.push.ProcessAll(context.Background())
		if err != nil {
			logger.WithError(err).Error("manual push run failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		}).Info("manual push run finished")
	}()

	httputil.WriteSuccessMessage(w, "Processing started", nil)
}
