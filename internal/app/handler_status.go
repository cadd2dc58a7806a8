package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// StatusResponse is the primary status-page document: fleet counters plus
// the per-monitor state map with maintenance substituted in. Monitors under
// an active maintenance window sit outside the three counters.
type StatusResponse struct {
	Up           int                          `json:"up"`
	Down         int                          `json:"down"`
	Degraded     int                          `json:"degraded"`
	UpdatedAtMs  int64                        `json:"updatedAt"`
	Maintenances []MaintenanceResponse        `json:"maintenances"`
	Monitors     map[string]MonitorStatusView `json:"monitors"`
}

type MonitorStatusView struct {
	Name           string                         `json:"name"`
	Status         string                         `json:"status"`
	PrimaryRegion  string                         `json:"primaryRegion"`
	LatencyMs      int64                          `json:"latency"`
	Timing         domain.TimingMetrics           `json:"timing"`
	RegionStatuses map[string]domain.RegionStatus `json:"regionStatuses"`
	LastCheckMs    int64                          `json:"lastCheck"`
	DownSinceMs    int64                          `json:"downSince,omitempty"`
	SlowSinceMs    int64                          `json:"slowSince,omitempty"`
	LastError      string                         `json:"lastError,omitempty"`
	Maintenance    *MaintenanceResponse           `json:"maintenance,omitempty"`
}

type MaintenanceResponse struct {
	Monitors []string `json:"monitors,omitempty"`
	Title    string   `json:"title,omitempty"`
	Body     string   `json:"body"`
	StartMs  int64    `json:"start"`
	EndMs    int64    `json:"end,omitempty"`
	Color    string   `json:"color,omitempty"`
	Active   bool     `json:"active"`
}

// DataResponse is the compact dashboard projection: one flat row per
// monitor, degraded folded into up.
type DataResponse struct {
	Up           int                        `json:"up"`
	Down         int                        `json:"down"`
	UpdatedAtMs  int64                      `json:"updatedAt"`
	Maintenances []MaintenanceResponse      `json:"maintenances"`
	Monitors     map[string]MonitorDataView `json:"monitors"`
}

type MonitorDataView struct {
	Up        bool   `json:"up"`
	LatencyMs int64  `json:"latency"`
	Location  string `json:"location"`
	Message   string `json:"message"`
}

func (a *Application) statusHandler(w http.ResponseWriter, r *http.Request) {
	a.writeCachedJSON(w, r, "status", func(ctx context.Context) (any, error) {
		return a.buildStatusResponse(ctx)
	})
}

func (a *Application) dataHandler(w http.ResponseWriter, r *http.Request) {
	a.writeCachedJSON(w, r, "data", func(ctx context.Context) (any, error) {
		return a.buildDataResponse(ctx)
	})
}

func (a *Application) buildStatusResponse(ctx context.Context) (*StatusResponse, error) {
	cfg := a.currentConfig()
	now := a.clock.Now()

	states, err := a.loadStates(ctx)
	if err != nil {
		return nil, err
	}

	response := &StatusResponse{
		Maintenances: maintenanceViews(cfg.Maintenances, now),
		Monitors:     make(map[string]MonitorStatusView, len(cfg.Monitors)),
	}

	for i := range cfg.Monitors {
		monitor := &cfg.Monitors[i]
		view := monitorView(monitor, states[monitor.ID])

		if window := domain.ActiveMaintenanceFor(cfg.Maintenances, monitor.ID, now); window != nil {
			view.Status = domain.StatusStringMaintenance
			mv := maintenanceView(window, now)
			view.Maintenance = &mv
		} else {
			switch view.Status {
			case domain.StatusStringDown:
				response.Down++
			case domain.StatusStringDegraded:
				response.Degraded++
			default:
				response.Up++
			}
		}

		if view.LastCheckMs > response.UpdatedAtMs {
			response.UpdatedAtMs = view.LastCheckMs
		}
		response.Monitors[monitor.ID] = view
	}

	return response, nil
}

func (a *Application) buildDataResponse(ctx context.Context) (*DataResponse, error) {
	cfg := a.currentConfig()
	now := a.clock.Now()

	states, err := a.loadStates(ctx)
	if err != nil {
		return nil, err
	}

	response := &DataResponse{
		Maintenances: maintenanceViews(cfg.Maintenances, now),
		Monitors:     make(map[string]MonitorDataView, len(cfg.Monitors)),
	}

	for i := range cfg.Monitors {
		monitor := &cfg.Monitors[i]
		state := states[monitor.ID]

		up := !state.Status.IsDown()
		message := "OK"
		if !up {
			message = state.LastError
			if message == "" {
				message = "down"
			}
		}

		if up {
			response.Up++
		} else {
			response.Down++
		}
		if state.LastCheckMs > response.UpdatedAtMs {
			response.UpdatedAtMs = state.LastCheckMs
		}

		response.Monitors[monitor.ID] = MonitorDataView{
			Up:        up,
			LatencyMs: state.PrimaryLatencyMs,
			Location:  monitor.PrimaryRegion,
			Message:   message,
		}
	}

	return response, nil
}

// loadStates reads every per-monitor state row in one scan. Monitors that
// were never aggregated are simply absent; callers treat the zero state as
// up with no observations.
func (a *Application) loadStates(ctx context.Context) (map[string]domain.MonitorState, error) {
	records, err := a.store.ScanPrefix(ctx, store.StatePKPrefix())
	if err != nil {
		return nil, fmt.Errorf("scan states: %w", err)
	}

	states := make(map[string]domain.MonitorState, len(records))
	for _, rec := range records {
		if rec.SK != store.SKCurrent {
			continue
		}
		id := store.MonitorIDFromStatePK(rec.PK)
		if id == "" {
			continue
		}
		state, err := store.DecodeState(rec)
		if err != nil {
			a.logger.Warn("Skipping undecodable state record", "pk", rec.PK, "error", err)
			continue
		}
		states[id] = state
	}
	return states, nil
}

func monitorView(monitor *domain.Monitor, state domain.MonitorState) MonitorStatusView {
	name := monitor.Name
	if name == "" {
		name = monitor.ID
	}

	status := state.Status
	if status == "" {
		status = domain.StatusUp
	}

	regions := state.RegionStatuses
	if regions == nil {
		regions = map[string]domain.RegionStatus{}
	}

	return MonitorStatusView{
		Name:           name,
		Status:         string(status),
		PrimaryRegion:  monitor.PrimaryRegion,
		LatencyMs:      state.PrimaryLatencyMs,
		Timing:         state.PrimaryTiming,
		RegionStatuses: regions,
		LastCheckMs:    state.LastCheckMs,
		DownSinceMs:    state.DownSinceMs,
		SlowSinceMs:    state.SlowSinceMs,
		LastError:      state.LastError,
	}
}

// maintenanceViews lists windows still worth announcing: active now or yet
// to start. Windows that already ended stay out of the status document.
func maintenanceViews(windows []domain.MaintenanceWindow, now time.Time) []MaintenanceResponse {
	views := make([]MaintenanceResponse, 0, len(windows))
	for i := range windows {
		w := &windows[i]
		if w.End != nil && now.After(*w.End) {
			continue
		}
		views = append(views, maintenanceView(w, now))
	}
	return views
}

func maintenanceView(w *domain.MaintenanceWindow, now time.Time) MaintenanceResponse {
	view := MaintenanceResponse{
		Monitors: w.Monitors,
		Title:    w.Title,
		Body:     w.Body,
		StartMs:  w.Start.UnixMilli(),
		Color:    w.Color,
		Active:   w.IsActive(now),
	}
	if w.End != nil {
		view.EndMs = w.End.UnixMilli()
	}
	return view
}
