package ports

import (
	"context"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// Prober executes exactly one check of a monitor and reports the outcome.
// Probe never returns an error: every failure mode is folded into a down
// CheckResult with a categorised error string.
type Prober interface {
	Probe(ctx context.Context, monitor *domain.Monitor, region string) domain.CheckResult
}

// ProbeSummary is what a regional tick hands back to the scheduler.
type ProbeSummary struct {
	Region      string
	Checked     int
	Up          int
	Down        int
	WriteErrors int
}
