package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// spikeVerdict is the outcome of one spike evaluation, kept for the message
// and for tests.
type spikeVerdict struct {
	Fired      bool
	BaselineMs int64
	Samples    int
	Phase      string
}

// evaluateSpike compares the current primary latency against the median of
// the primary region's recent history. Too few samples means no verdict: a
// thin baseline says more about the window than about the target.
func (a *Aggregator) evaluateSpike(ctx context.Context, tickMs int64, monitor *domain.Monitor, latencyMs int64, timing domain.TimingMetrics) (spikeVerdict, error) {
	spike := monitor.Alerting.Spike

	windowMinutes := spike.BaselineWindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = constants.DefaultSpikeBaselineMinutes
	}
	thresholdPercent := spike.ThresholdPercent
	if thresholdPercent <= 0 {
		thresholdPercent = constants.DefaultSpikeThresholdPercent
	}

	windowMs := int64(windowMinutes) * int64(time.Minute/time.Millisecond)
	records, err := a.store.Query(ctx, store.LatencyPK(monitor.ID, monitor.PrimaryRegion), queryAfter(tickMs-windowMs))
	if err != nil {
		return spikeVerdict{}, err
	}

	latencies := make([]int64, 0, len(records))
	for _, rec := range records {
		point, decodeErr := store.DecodeLatency(rec)
		if decodeErr != nil {
			continue
		}
		latencies = append(latencies, point.LatencyMs)
	}

	verdict := spikeVerdict{Samples: len(latencies)}
	if len(latencies) < constants.MinSpikeBaselineSamples {
		return verdict, nil
	}

	verdict.BaselineMs = median(latencies)
	limit := float64(verdict.BaselineMs) * (1 + float64(thresholdPercent)/100)
	if float64(latencyMs) > limit {
		verdict.Fired = true
		verdict.Phase = attributePhase(timing)
	}
	return verdict, nil
}

func median(values []int64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// attributePhase names the phase most likely behind a slow sample. The
// cutoffs are advisory heuristics for the notification text, not alerts.
func attributePhase(t domain.TimingMetrics) string {
	switch {
	case t.DNSLookup > 100:
		return "DNS"
	case t.TLSHandshake > 200:
		return "TLS"
	case t.Total > 0 && float64(t.TTFB) > 0.7*float64(t.Total):
		return "TTFB"
	default:
		return "overall"
	}
}
