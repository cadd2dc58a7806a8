package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// HistoryPoint is one observation on the latency chart axis.
type HistoryPoint struct {
	TimeMs    int64                `json:"time"`
	LatencyMs int64                `json:"latency"`
	Timing    domain.TimingMetrics `json:"timing"`
}

type HistoryResponse struct {
	MonitorID string         `json:"monitorId"`
	Region    string         `json:"region"`
	Data      []HistoryPoint `json:"data"`
}

type HistoryAllResponse struct {
	MonitorID     string                    `json:"monitorId"`
	PrimaryRegion string                    `json:"primaryRegion"`
	Regions       map[string][]HistoryPoint `json:"regions"`
}

// historyHandler serves /api/history/{id} with an optional ?region= and
// /api/history/{id}/all for every region at once.
func (a *Application) historyHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, constants.PathAPIHistory), "/")
	if rest == "" {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "missing monitor id"})
		return
	}

	id := rest
	all := false
	if strings.HasSuffix(rest, "/all") {
		id = strings.TrimSuffix(rest, "/all")
		all = true
	}

	cfg := a.currentConfig()
	monitor := cfg.MonitorByID(id)
	if monitor == nil {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown monitor %q", id)})
		return
	}

	if all {
		a.serveHistoryAll(w, r, monitor)
		return
	}

	region := r.URL.Query().Get("region")
	if region == "" {
		region = monitor.PrimaryRegion
	} else if !monitor.AppliesToRegion(region) {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("monitor %q has no region %q", id, region)})
		return
	}

	points, err := a.regionHistory(r.Context(), monitor.ID, region)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, HistoryResponse{
		MonitorID: monitor.ID,
		Region:    region,
		Data:      points,
	})
}

func (a *Application) serveHistoryAll(w http.ResponseWriter, r *http.Request, monitor *domain.Monitor) {
	regions := make(map[string][]HistoryPoint, len(monitor.Regions))
	for _, region := range monitor.Regions {
		points, err := a.regionHistory(r.Context(), monitor.ID, region)
		if err != nil {
			a.writeError(w, err)
			return
		}
		regions[region] = points
	}

	a.writeJSON(w, http.StatusOK, HistoryAllResponse{
		MonitorID:     monitor.ID,
		PrimaryRegion: monitor.PrimaryRegion,
		Regions:       regions,
	})
}

// regionHistory reads the full retained latency series, oldest first. The
// store's TTL bounds the range, so no time filter is needed here.
func (a *Application) regionHistory(ctx context.Context, monitorID, region string) ([]HistoryPoint, error) {
	records, err := a.store.Query(ctx, store.LatencyPK(monitorID, region), ports.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("query latency history: %w", err)
	}

	points := make([]HistoryPoint, 0, len(records))
	for _, rec := range records {
		point, err := store.DecodeLatency(rec)
		if err != nil {
			a.logger.Warn("Skipping undecodable latency record", "pk", rec.PK, "sk", rec.SK, "error", err)
			continue
		}
		points = append(points, HistoryPoint{
			TimeMs:    point.TimestampMs,
			LatencyMs: point.LatencyMs,
			Timing:    point.Timing,
		})
	}
	return points, nil
}
