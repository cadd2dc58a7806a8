package domain

import "github.com/google/uuid"

const (
	NotificationDown      = "down"
	NotificationUp        = "up"
	NotificationSlow      = "slow"
	NotificationFastAgain = "fast_again"
	NotificationSpike     = "spike"
)

// NotificationEvent is one user-visible alert decided by the aggregator.
// EventID exists for receiver-side dedup; delivery itself is best-effort.
type NotificationEvent struct {
	EventID     string `json:"event_id"`
	Kind        string `json:"kind"`
	MonitorID   string `json:"monitor_id"`
	MonitorName string `json:"monitor_name"`
	Message     string `json:"message"`
	AtMs        int64  `json:"at_ms"`
}

func NewNotificationEvent(kind, monitorID, monitorName, message string, atMs int64) NotificationEvent {
	return NotificationEvent{
		EventID:     uuid.NewString(),
		Kind:        kind,
		MonitorID:   monitorID,
		MonitorName: monitorName,
		Message:     message,
		AtMs:        atMs,
	}
}

// StatusEvent is published on the in-process bus whenever a tick changes a
// monitor's aggregated status. Telemetry and the styled status log subscribe;
// it never leaves the process.
type StatusEvent struct {
	MonitorID string
	Name      string
	Previous  MonitorStatus
	Current   MonitorStatus
	LatencyMs int64
	AtMs      int64
}
