package probe

import (
	"context"
	"net"
	"time"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// TCPProber opens one TCP connection per check. The connect completing is the
// whole test; no bytes are exchanged. Resolution and dialling are timed
// separately so the result still carries a DNS phase.
type TCPProber struct {
	clock    ports.Clock
	resolver *net.Resolver
}

func NewTCPProber(clock ports.Clock) *TCPProber {
	return &TCPProber{clock: clock, resolver: net.DefaultResolver}
}

func (p *TCPProber) Probe(ctx context.Context, monitor *domain.Monitor, region string) domain.CheckResult {
	result := domain.CheckResult{
		MonitorID:   monitor.ID,
		Region:      region,
		TimestampMs: ports.NowMs(p.clock),
		Status:      domain.CheckStatusDown,
	}

	timeout := time.Duration(monitor.EffectiveTimeoutMs()) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host, port, err := net.SplitHostPort(monitor.Target)
	if err != nil {
		result.Error = errConnectionFailed + err.Error()
		return result
	}

	dnsStart := time.Now()
	addrs, err := p.resolver.LookupHost(ctx, host)
	dnsEnd := time.Now()
	result.Timing.DNSLookup = dnsEnd.Sub(dnsStart).Milliseconds()

	if err != nil || len(addrs) == 0 {
		result.Timing.Total = result.Timing.DNSLookup
		result.LatencyMs = result.Timing.Total
		if err != nil {
			result.Error = Categorise(err)
		} else {
			result.Error = errDNSFailed
		}
		return result
	}

	dialer := &net.Dialer{}
	connectStart := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addrs[0], port))
	connectEnd := time.Now()
	result.Timing.TCPConnect = connectEnd.Sub(connectStart).Milliseconds()
	result.Timing.Total = result.Timing.DNSLookup + result.Timing.TCPConnect
	result.Timing.Clamp()
	result.LatencyMs = result.Timing.Total

	if err != nil {
		result.Error = Categorise(err)
		return result
	}
	_ = conn.Close()

	result.Status = domain.CheckStatusUp
	return result
}
