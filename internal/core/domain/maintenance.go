package domain

import "time"

// MaintenanceWindow is a scheduled interval during which matching monitors
// report maintenance instead of their underlying status. An absent End means
// open-ended; an empty Monitors list matches every monitor.
type MaintenanceWindow struct {
	Monitors []string   `json:"monitors,omitempty"`
	Title    string     `json:"title,omitempty"`
	Body     string     `json:"body"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Color    string     `json:"color,omitempty"`
}

// IsActive reports whether now falls inside the window.
func (w *MaintenanceWindow) IsActive(now time.Time) bool {
	if now.Before(w.Start) {
		return false
	}
	return w.End == nil || !now.After(*w.End)
}

// AppliesTo reports whether the window covers the given monitor.
func (w *MaintenanceWindow) AppliesTo(monitorID string) bool {
	if len(w.Monitors) == 0 {
		return true
	}
	for _, id := range w.Monitors {
		if id == monitorID {
			return true
		}
	}
	return false
}

// ActiveMaintenanceFor returns the first active window covering the monitor.
func ActiveMaintenanceFor(windows []MaintenanceWindow, monitorID string, now time.Time) *MaintenanceWindow {
	for i := range windows {
		if windows[i].IsActive(now) && windows[i].AppliesTo(monitorID) {
			return &windows[i]
		}
	}
	return nil
}
