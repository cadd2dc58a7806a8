package domain

// GlobalSummary is the fleet-wide counter set, overwritten atomically at the
// end of each aggregator tick.
type GlobalSummary struct {
	OverallUp       int   `json:"overall_up"`
	OverallDown     int   `json:"overall_down"`
	OverallDegraded int   `json:"overall_degraded"`
	LastUpdateMs    int64 `json:"last_update_ms"`
}
