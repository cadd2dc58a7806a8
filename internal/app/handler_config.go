package app

import (
	"net/http"
	"time"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// MonitorConfigView is the public slice of a monitor definition. Targets,
// headers and bodies stay out, they can embed credentials.
type MonitorConfigView struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	Method             string   `json:"method"`
	Group              string   `json:"group,omitempty"`
	Regions            []string `json:"regions"`
	PrimaryRegion      string   `json:"primaryRegion"`
	LatencyThresholdMs int64    `json:"latencyThreshold,omitempty"`
}

type ConfigResponse struct {
	Page         map[string]any        `json:"page,omitempty"`
	Monitors     []MonitorConfigView   `json:"monitors"`
	Maintenances []MaintenanceResponse `json:"maintenances"`
}

func (a *Application) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := a.currentConfig()
	now := a.clock.Now()

	monitors := make([]MonitorConfigView, 0, len(cfg.Monitors))
	for i := range cfg.Monitors {
		m := &cfg.Monitors[i]
		monitors = append(monitors, MonitorConfigView{
			ID:                 m.ID,
			Name:               m.Name,
			Method:             m.Method,
			Group:              m.Group,
			Regions:            m.Regions,
			PrimaryRegion:      m.PrimaryRegion,
			LatencyThresholdMs: m.LatencyThresholdMs,
		})
	}

	a.writeJSON(w, http.StatusOK, ConfigResponse{
		Page:         cfg.Page,
		Monitors:     monitors,
		Maintenances: allMaintenanceViews(cfg.Maintenances, now),
	})
}

// allMaintenanceViews maps every configured window, ended ones included.
// This is the configuration view, not the announcement list.
func allMaintenanceViews(windows []domain.MaintenanceWindow, now time.Time) []MaintenanceResponse {
	views := make([]MaintenanceResponse, 0, len(windows))
	for i := range windows {
		views = append(views, maintenanceView(&windows[i], now))
	}
	return views
}
