package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// BadgeResponse is the shields.io endpoint-badge schema.
type BadgeResponse struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
}

// badgeHandler serves /api/badge?id=<monitor> with optional label, up,
// down, colorUp and colorDown overrides. Responses are cached per query
// string for the configured TTL, shields.io polls these aggressively.
func (a *Application) badgeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cfg := a.currentConfig()
	monitor := cfg.MonitorByID(query.Get("id"))
	if monitor == nil {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown monitor %q", query.Get("id"))})
		return
	}

	a.writeCachedJSON(w, r, "badge?"+r.URL.RawQuery, func(ctx context.Context) (any, error) {
		isDown := false

		record, err := a.store.Get(ctx, store.StatePK(monitor.ID), store.SKCurrent)
		switch {
		case err == nil:
			state, decodeErr := store.DecodeState(record)
			if decodeErr != nil {
				return nil, decodeErr
			}
			isDown = state.Status.IsDown()
		case errors.Is(err, ports.ErrNotFound):
			// never aggregated reads as up
		default:
			return nil, fmt.Errorf("read state: %w", err)
		}

		label := query.Get("label")
		if label == "" {
			label = monitor.Name
		}
		if label == "" {
			label = monitor.ID
		}

		badge := BadgeResponse{SchemaVersion: 1, Label: label}
		if isDown {
			badge.Message = orDefault(query.Get("down"), "down")
			badge.Color = orDefault(query.Get("colorDown"), "red")
		} else {
			badge.Message = orDefault(query.Get("up"), "up")
			badge.Color = orDefault(query.Get("colorUp"), "brightgreen")
		}
		return badge, nil
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
