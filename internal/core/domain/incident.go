package domain

// Incident is a contiguous downtime episode for one monitor. StartMs matches
// the state's DownSinceMs at open time; EndMs is set exactly once on
// recovery and never cleared.
type Incident struct {
	MonitorID   string   `json:"monitor_id"`
	StartMs     int64    `json:"start_ms"`
	EndMs       int64    `json:"end_ms,omitempty"`
	Error       string   `json:"error,omitempty"`
	RegionsDown []string `json:"regions_down,omitempty"`
}

func (i *Incident) IsOpen() bool {
	return i.EndMs == 0
}

// DurationMs is the episode length, or elapsed time so far for open incidents.
func (i *Incident) DurationMs(nowMs int64) int64 {
	if i.IsOpen() {
		return nowMs - i.StartMs
	}
	return i.EndMs - i.StartMs
}
