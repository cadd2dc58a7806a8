package app

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// IncidentView is one downtime episode in the incident log.
type IncidentView struct {
	MonitorID   string   `json:"monitorId"`
	MonitorName string   `json:"monitorName,omitempty"`
	StartMs     int64    `json:"start"`
	EndMs       int64    `json:"end,omitempty"`
	DurationMs  int64    `json:"duration"`
	Error       string   `json:"error,omitempty"`
	RegionsDown []string `json:"regionsDown,omitempty"`
	Open        bool     `json:"open"`
}

// IncidentsResponse lists episodes newest first, plus the same set bucketed
// by calendar month in the configured display timezone.
type IncidentsResponse struct {
	Incidents []IncidentView            `json:"incidents"`
	ByMonth   map[string][]IncidentView `json:"byMonth"`
}

func (a *Application) incidentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := a.currentConfig()

	var (
		records []ports.Record
		err     error
	)
	if monitorID := r.URL.Query().Get("monitorId"); monitorID != "" {
		records, err = a.store.Query(ctx, store.IncidentPK(monitorID), ports.QueryOptions{Descending: true})
	} else {
		records, err = a.store.ScanPrefix(ctx, store.IncidentPKPrefix())
	}
	if err != nil {
		a.writeError(w, fmt.Errorf("read incidents: %w", err))
		return
	}

	nowMs := ports.NowMs(a.clock)
	location := cfg.Location()

	incidents := make([]IncidentView, 0, len(records))
	for _, rec := range records {
		incident, decodeErr := store.DecodeIncident(rec)
		if decodeErr != nil {
			a.logger.Warn("Skipping undecodable incident record", "pk", rec.PK, "sk", rec.SK, "error", decodeErr)
			continue
		}

		view := IncidentView{
			MonitorID:   incident.MonitorID,
			StartMs:     incident.StartMs,
			EndMs:       incident.EndMs,
			DurationMs:  incident.DurationMs(nowMs),
			Error:       incident.Error,
			RegionsDown: incident.RegionsDown,
			Open:        incident.IsOpen(),
		}
		if monitor := cfg.MonitorByID(incident.MonitorID); monitor != nil {
			view.MonitorName = monitor.Name
		}
		incidents = append(incidents, view)
	}

	// Newest first across monitors.
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].StartMs > incidents[j].StartMs
	})

	byMonth := make(map[string][]IncidentView)
	for _, view := range incidents {
		month := time.UnixMilli(view.StartMs).In(location).Format("2006-01")
		byMonth[month] = append(byMonth[month], view)
	}

	a.writeJSON(w, http.StatusOK, IncidentsResponse{
		Incidents: incidents,
		ByMonth:   byMonth,
	})
}
