package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

const icmpPacketCount = 3

// ICMPProber sends a short echo burst and reports the average round trip.
// Privileged mode needs raw socket capability; the unprivileged UDP fallback
// works without it on most distributions.
type ICMPProber struct {
	clock      ports.Clock
	privileged bool
}

func NewICMPProber(clock ports.Clock, privileged bool) *ICMPProber {
	return &ICMPProber{clock: clock, privileged: privileged}
}

func (p *ICMPProber) Probe(ctx context.Context, monitor *domain.Monitor, region string) domain.CheckResult {
	result := domain.CheckResult{
		MonitorID:   monitor.ID,
		Region:      region,
		TimestampMs: ports.NowMs(p.clock),
		Status:      domain.CheckStatusDown,
	}

	pinger, err := probing.NewPinger(monitor.Target)
	if err != nil {
		result.Error = Categorise(err)
		return result
	}

	pinger.SetPrivileged(p.privileged)
	pinger.Count = icmpPacketCount
	pinger.Timeout = time.Duration(monitor.EffectiveTimeoutMs()) * time.Millisecond

	if err := pinger.RunWithContext(ctx); err != nil {
		result.Error = Categorise(err)
		return result
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		result.Error = fmt.Sprintf("%s (sent %d packets, received 0)", errRequestTimeout, stats.PacketsSent)
		return result
	}

	rtt := stats.AvgRtt.Milliseconds()
	result.Status = domain.CheckStatusUp
	result.LatencyMs = rtt
	result.Timing.Total = rtt
	return result
}
