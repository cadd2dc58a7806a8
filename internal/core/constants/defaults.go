package constants

import "time"

const (
	// DefaultUserAgent identifies probe traffic in target access logs. Kept
	// stable so operators can allowlist it.
	DefaultUserAgent = "Lookout-Probe/1.0 (+https://github.com/lookout-monitor/lookout)"

	// DefaultLookbackMs is the aggregator's observation window: wide enough
	// to absorb clock drift between probe regions and the aggregator.
	DefaultLookbackMs = 90_000

	// DefaultCheckTTL / DefaultIncidentTTL are the store retention windows.
	DefaultCheckTTL    = 12 * time.Hour
	DefaultIncidentTTL = 90 * 24 * time.Hour

	// DefaultProbeConcurrency bounds in-flight checks per regional tick.
	DefaultProbeConcurrency = 16

	// DefaultAggregatorConcurrency bounds monitors processed in parallel.
	DefaultAggregatorConcurrency = 8

	// DefaultGracePeriodMinutes gates down/slow notifications when a monitor
	// carries no alerting override.
	DefaultGracePeriodMinutes = 5

	// DefaultSpikeBaselineMinutes / DefaultSpikeThresholdPercent drive spike
	// detection when enabled without explicit parameters.
	DefaultSpikeBaselineMinutes  = 30
	DefaultSpikeThresholdPercent = 200

	// MinSpikeBaselineSamples is the floor below which a baseline is too
	// thin to call anything a spike.
	MinSpikeBaselineSamples = 6

	// DefaultWebhookTimeout bounds one notification delivery.
	DefaultWebhookTimeout = 5 * time.Second

	// DefaultBadgeCacheTTL is the response cache for badge and status reads.
	DefaultBadgeCacheTTL = 60 * time.Second
)
