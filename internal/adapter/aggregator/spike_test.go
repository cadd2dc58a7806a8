package aggregator

import (
	"strings"
	"testing"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

func spikeMonitor() domain.Monitor {
	return domain.Monitor{
		ID:            "api",
		Name:          "Example API",
		Method:        domain.MethodGet,
		Target:        "https://api.example.com/health",
		Regions:       []string{"iad"},
		PrimaryRegion: "iad",
		Alerting: &domain.AlertingConfig{
			Spike: &domain.SpikeConfig{
				Enabled:               true,
				BaselineWindowMinutes: 30,
				ThresholdPercent:      200,
			},
		},
	}
}

// seedBaseline writes one latency sample per minute, newest first at
// nowMs-offset, all with the given latency.
func seedBaseline(t *testing.T, h *harness, samples int, latencyMs int64) {
	t.Helper()
	for i := 0; i < samples; i++ {
		ts := h.clock.nowMs - int64(i+2)*60_000
		seedResult(t, h.kv, upResult("api", "iad", ts, latencyMs))
	}
}

func TestSpikeFiresAgainstMedianBaseline(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	seedBaseline(t, h, 20, 100)

	// Current sample spikes to 350ms, dominated by time to first byte.
	current := upResult("api", "iad", h.clock.nowMs-1000, 350)
	current.Timing = domain.TimingMetrics{TTFB: 300, Total: 350}
	seedResult(t, h.kv, current)

	mustRun(t, agg, []domain.Monitor{monitor})

	if got := h.notifier.countKind(domain.NotificationSpike); got != 1 {
		t.Fatalf("Expected one spike notification, got %v", h.notifier.kinds())
	}
	msg := h.notifier.events[0].Message
	if !strings.Contains(msg, "TTFB") {
		t.Errorf("Spike message should attribute TTFB, got %q", msg)
	}
	if !strings.Contains(msg, "350ms") || !strings.Contains(msg, "100ms") {
		t.Errorf("Spike message should carry sample and baseline, got %q", msg)
	}
}

func TestSpikeRequiresMinimumBaselineSamples(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	// Four prior samples plus the current one is still below the floor.
	seedBaseline(t, h, 4, 100)
	seedResult(t, h.kv, upResult("api", "iad", h.clock.nowMs-1000, 900))

	mustRun(t, agg, []domain.Monitor{monitor})

	if len(h.notifier.events) != 0 {
		t.Errorf("Thin baseline must not spike, got %v", h.notifier.kinds())
	}
}

func TestSpikeThresholdIsStrictlyGreater(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	// Baseline 100ms and threshold 200% puts the limit at exactly 300ms.
	seedBaseline(t, h, 20, 100)
	seedResult(t, h.kv, upResult("api", "iad", h.clock.nowMs-1000, 300))

	mustRun(t, agg, []domain.Monitor{monitor})

	if len(h.notifier.events) != 0 {
		t.Errorf("A sample at the limit is not a spike, got %v", h.notifier.kinds())
	}
}

func TestSpikeIgnoredWhileDown(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	seedBaseline(t, h, 20, 100)
	seedResult(t, h.kv, downResult("api", "iad", h.clock.nowMs-1000, "Request timeout"))

	mustRun(t, agg, []domain.Monitor{monitor})

	if got := h.notifier.countKind(domain.NotificationSpike); got != 0 {
		t.Errorf("Down monitors have no meaningful latency to spike on, got %v", h.notifier.kinds())
	}
}

func TestSpikeBaselineIgnoresSamplesOutsideWindow(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	monitor.Alerting.Spike.BaselineWindowMinutes = 10
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	// Plenty of old samples, too few recent ones.
	for i := 0; i < 20; i++ {
		ts := h.clock.nowMs - int64(i+15)*60_000
		seedResult(t, h.kv, upResult("api", "iad", ts, 100))
	}
	seedResult(t, h.kv, upResult("api", "iad", h.clock.nowMs-1000, 900))

	mustRun(t, agg, []domain.Monitor{monitor})

	if len(h.notifier.events) != 0 {
		t.Errorf("Samples outside the window must not feed the baseline, got %v", h.notifier.kinds())
	}
}

func TestMedian(t *testing.T) {
	cases := []struct {
		name   string
		values []int64
		want   int64
	}{
		{"odd", []int64{300, 100, 200}, 200},
		{"even", []int64{400, 100, 200, 300}, 250},
		{"single", []int64{42}, 42},
		{"skewed", []int64{100, 100, 100, 100, 9000}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := median(tc.values); got != tc.want {
				t.Errorf("median(%v) = %d, want %d", tc.values, got, tc.want)
			}
		})
	}
}

func TestAttributePhase(t *testing.T) {
	cases := []struct {
		name   string
		timing domain.TimingMetrics
		want   string
	}{
		{"slow dns", domain.TimingMetrics{DNSLookup: 150, Total: 400}, "DNS"},
		{"slow tls", domain.TimingMetrics{DNSLookup: 20, TLSHandshake: 250, Total: 400}, "TLS"},
		{"slow ttfb", domain.TimingMetrics{DNSLookup: 20, TLSHandshake: 50, TTFB: 350, Total: 400}, "TTFB"},
		{"nothing dominates", domain.TimingMetrics{DNSLookup: 20, TLSHandshake: 50, TTFB: 100, Total: 400}, "overall"},
		{"dns wins over tls", domain.TimingMetrics{DNSLookup: 150, TLSHandshake: 250, Total: 400}, "DNS"},
		{"zero total", domain.TimingMetrics{}, "overall"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := attributePhase(tc.timing); got != tc.want {
				t.Errorf("attributePhase(%+v) = %q, want %q", tc.timing, got, tc.want)
			}
		})
	}
}

func TestSpikeFiresRegardlessOfGracePeriod(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 60}})

	seedBaseline(t, h, 20, 100)
	current := upResult("api", "iad", h.clock.nowMs-1000, 500)
	current.Timing = domain.TimingMetrics{DNSLookup: 150, Total: 500}
	seedResult(t, h.kv, current)

	mustRun(t, agg, []domain.Monitor{monitor})

	if got := h.notifier.countKind(domain.NotificationSpike); got != 1 {
		t.Errorf("Spikes are not grace-gated, got %v", h.notifier.kinds())
	}
	if !strings.Contains(h.notifier.events[0].Message, "DNS") {
		t.Errorf("Expected DNS attribution, got %q", h.notifier.events[0].Message)
	}
}

// Sub-minute windows still honour the sample floor; the point is the window
// arithmetic does not panic on short configurations.
func TestSpikeDefaultsAppliedWhenUnconfigured(t *testing.T) {
	h := newHarness()
	monitor := spikeMonitor()
	monitor.Alerting.Spike.BaselineWindowMinutes = 0
	monitor.Alerting.Spike.ThresholdPercent = 0
	agg := h.aggregator(Config{Notification: domain.NotificationConfig{GracePeriodMinutes: 5}})

	seedBaseline(t, h, 20, 100)
	seedResult(t, h.kv, upResult("api", "iad", h.clock.nowMs-1000, 350))

	mustRun(t, agg, []domain.Monitor{monitor})

	// Defaults are 30 minutes and 200%: 350 > 100 × 3 still fires.
	if got := h.notifier.countKind(domain.NotificationSpike); got != 1 {
		t.Errorf("Expected defaults to apply, got %v", h.notifier.kinds())
	}
}
