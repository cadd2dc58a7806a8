package domain

const (
	CheckStatusUp   = "up"
	CheckStatusDown = "down"
)

// CheckResult is one probe outcome for one monitor from one region.
type CheckResult struct {
	MonitorID   string        `json:"monitor_id"`
	Region      string        `json:"region"`
	TimestampMs int64         `json:"timestamp_ms"`
	Status      string        `json:"status"`
	LatencyMs   int64         `json:"latency_ms"`
	Timing      TimingMetrics `json:"timing"`
	Error       string        `json:"error,omitempty"`
}

func (r *CheckResult) IsUp() bool {
	return r.Status == CheckStatusUp
}

// LatencyPoint is the chart-facing copy of a check's timing, stored per
// region under its own key space so history reads never scan check records.
type LatencyPoint struct {
	MonitorID   string        `json:"monitor_id"`
	Region      string        `json:"region"`
	TimestampMs int64         `json:"timestamp_ms"`
	LatencyMs   int64         `json:"latency_ms"`
	Timing      TimingMetrics `json:"timing"`
}
