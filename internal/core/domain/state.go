package domain

const (
	StatusStringUp          = "up"
	StatusStringDegraded    = "degraded"
	StatusStringDown        = "down"
	StatusStringMaintenance = "maintenance"
)

type MonitorStatus string

const (
	StatusUp       MonitorStatus = StatusStringUp
	StatusDegraded MonitorStatus = StatusStringDegraded
	StatusDown     MonitorStatus = StatusStringDown

	// StatusMaintenance is presentation-only: the aggregator never writes it,
	// the query layer substitutes it while a maintenance window matches.
	StatusMaintenance MonitorStatus = StatusStringMaintenance
)

func (s MonitorStatus) IsDown() bool {
	return s == StatusDown
}

// RegionStatus is the per-region slice of a monitor's current state.
type RegionStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

// MonitorState is the aggregator-owned current state of one monitor.
// DownSinceMs is set iff Status is down; SlowSinceMs is set iff the primary
// latency currently exceeds the monitor's threshold; LastNotifiedDownMs is
// never below DownSinceMs while both are set.
type MonitorState struct {
	MonitorID          string                  `json:"monitor_id"`
	Status             MonitorStatus           `json:"status"`
	PrimaryLatencyMs   int64                   `json:"primary_latency_ms"`
	PrimaryTiming      TimingMetrics           `json:"primary_timing"`
	RegionStatuses     map[string]RegionStatus `json:"region_statuses"`
	LastCheckMs        int64                   `json:"last_check_ms"`
	DownSinceMs        int64                   `json:"down_since_ms,omitempty"`
	SlowSinceMs        int64                   `json:"slow_since_ms,omitempty"`
	LastNotifiedDownMs int64                   `json:"last_notified_down_ms,omitempty"`
	LastNotifiedSlowMs int64                   `json:"last_notified_slow_ms,omitempty"`
	LastError          string                  `json:"last_error,omitempty"`
}

// Clone returns a deep copy so a tick can derive the next state without
// mutating the prior one mid-comparison.
func (s *MonitorState) Clone() *MonitorState {
	next := *s
	next.RegionStatuses = make(map[string]RegionStatus, len(s.RegionStatuses))
	for k, v := range s.RegionStatuses {
		next.RegionStatuses[k] = v
	}
	return &next
}
