package aggregator

import (
	"fmt"
	"time"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/pkg/format"
)

const stampLayout = "2006-01-02 15:04:05 MST"

// stamp renders a millisecond timestamp in the operator's display timezone.
func (a *Aggregator) stamp(ms int64) string {
	return time.UnixMilli(ms).In(a.location).Format(stampLayout)
}

func (a *Aggregator) downMessage(monitor *domain.Monitor, state *domain.MonitorState) string {
	issue := state.LastError
	if issue == "" {
		issue = "no error recorded"
	}
	return fmt.Sprintf("%s is down. Unavailable since %s. Issue: %s",
		monitor.Name, a.stamp(state.DownSinceMs), issue)
}

func (a *Aggregator) upMessage(monitor *domain.Monitor, tickMs, downSinceMs int64) string {
	outage := time.Duration(tickMs-downSinceMs) * time.Millisecond
	return fmt.Sprintf("%s is back up at %s. It was down for %s.",
		monitor.Name, a.stamp(tickMs), format.Duration(outage))
}

func (a *Aggregator) slowMessage(monitor *domain.Monitor, state *domain.MonitorState) string {
	over := time.Duration(state.LastCheckMs-state.SlowSinceMs) * time.Millisecond
	return fmt.Sprintf("%s is responding slowly: %s over the last %s (threshold %s).",
		monitor.Name, format.Latency(state.PrimaryLatencyMs), format.Duration(over),
		format.Latency(monitor.LatencyThresholdMs))
}

func (a *Aggregator) fastMessage(monitor *domain.Monitor, latencyMs int64) string {
	return fmt.Sprintf("%s latency is back under %s: now %s.",
		monitor.Name, format.Latency(monitor.LatencyThresholdMs), format.Latency(latencyMs))
}

func (a *Aggregator) spikeMessage(monitor *domain.Monitor, latencyMs int64, verdict spikeVerdict) string {
	return fmt.Sprintf("%s latency spiked to %s against a %s baseline. Likely phase: %s.",
		monitor.Name, format.Latency(latencyMs), format.Latency(verdict.BaselineMs), verdict.Phase)
}
