package app

import (
	"net/http"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
)

// healthHandler reports process liveness and store connectivity, plus the
// last aggregation time when a fleet summary exists. A dead store is the
// one failure mode that makes every other endpoint lie.
func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := a.store.Ping(ctx); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}

	response := map[string]any{
		"status": "healthy",
		"store":  "ok",
	}

	if record, err := a.store.Get(ctx, store.GlobalStatePK, store.SKSummary); err == nil {
		if summary, decodeErr := store.DecodeSummary(record); decodeErr == nil {
			response["last_aggregation_ms"] = summary.LastUpdateMs
		}
	}

	a.writeJSON(w, http.StatusOK, response)
}
