package probe

import (
	"context"
	"testing"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// Live echo tests need raw-socket capability or a ping group range, neither
// of which test environments guarantee, so only the failure path runs here.
func TestICMPProbeUnresolvableHost(t *testing.T) {
	monitor := &domain.Monitor{
		ID:            "gw",
		Name:          "Gateway",
		Method:        domain.MethodICMPPing,
		Target:        "lookout-test-nonexistent.invalid",
		Regions:       []string{"syd"},
		PrimaryRegion: "syd",
		TimeoutMs:     2000,
	}
	monitor.Normalise()

	prober := NewICMPProber(ports.SystemClock{}, false)
	result := prober.Probe(context.Background(), monitor, "syd")

	if result.IsUp() {
		t.Fatal("Expected down for unresolvable host")
	}
	if result.Error == "" {
		t.Error("Down result must carry an error category")
	}
	if result.MonitorID != "gw" || result.Region != "syd" {
		t.Errorf("Result must echo monitor and region, got %+v", result)
	}
}
