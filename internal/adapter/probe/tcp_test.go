package probe

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

func tcpMonitor(target string) *domain.Monitor {
	m := &domain.Monitor{
		ID:            "db",
		Name:          "Database",
		Method:        domain.MethodTCPPing,
		Target:        target,
		Regions:       []string{"syd"},
		PrimaryRegion: "syd",
		TimeoutMs:     2000,
	}
	m.Normalise()
	return m
}

func TestTCPProbeUp(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	prober := NewTCPProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), tcpMonitor(listener.Addr().String()), "syd")

	if !result.IsUp() {
		t.Fatalf("Expected up, got %q", result.Error)
	}
	if result.Timing.TLSHandshake != 0 || result.Timing.TTFB != 0 || result.Timing.ContentDownload != 0 {
		t.Errorf("TCP probe must only fill DNS and connect phases, got %+v", result.Timing)
	}
	if result.Timing.Total != result.Timing.DNSLookup+result.Timing.TCPConnect {
		t.Errorf("Total %d must be DNS %d + connect %d",
			result.Timing.Total, result.Timing.DNSLookup, result.Timing.TCPConnect)
	}
	if result.LatencyMs != result.Timing.Total {
		t.Errorf("Latency %d must equal total %d", result.LatencyMs, result.Timing.Total)
	}
}

func TestTCPProbeConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	target := listener.Addr().String()
	_ = listener.Close()

	prober := NewTCPProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), tcpMonitor(target), "syd")

	if result.IsUp() {
		t.Fatal("Expected down with nothing listening")
	}
	if result.Error != "Connection refused" {
		t.Errorf("Expected Connection refused, got %q", result.Error)
	}
}

func TestTCPProbeTargetWithoutPort(t *testing.T) {
	prober := NewTCPProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), tcpMonitor("just-a-host"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down for a target missing its port")
	}
	if !strings.HasPrefix(result.Error, "Connection failed: ") {
		t.Errorf("Expected a connection failure category, got %q", result.Error)
	}
}

func TestTCPProbeUnresolvableHost(t *testing.T) {
	prober := NewTCPProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), tcpMonitor("lookout-test-nonexistent.invalid:5432"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down for unresolvable host")
	}
	if result.Error != "Host not found" && result.Error != "DNS resolution failed" {
		t.Errorf("Expected a DNS category, got %q", result.Error)
	}
	if result.Timing.Total != result.Timing.DNSLookup {
		t.Errorf("Resolution failures spend their whole total in DNS, got %+v", result.Timing)
	}
}
