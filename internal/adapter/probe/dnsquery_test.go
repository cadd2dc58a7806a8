package probe

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// startDNSServer runs a resolver on an ephemeral loopback port and returns
// its address for use as a monitor target.
func startDNSServer(t *testing.T, handler dns.Handler) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })
	return pc.LocalAddr().String()
}

func answeringHandler(t *testing.T, records ...string) dns.Handler {
	t.Helper()
	return dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		for _, record := range records {
			rr, err := dns.NewRR(record)
			if err != nil {
				t.Errorf("Bad test record %q: %v", record, err)
				continue
			}
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})
}

func rcodeHandler(rcode int) dns.Handler {
	return dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, rcode)
		_ = w.WriteMsg(m)
	})
}

func dnsMonitor(target, name, qtype string) *domain.Monitor {
	m := &domain.Monitor{
		ID:            "resolver",
		Name:          "Resolver",
		Method:        domain.MethodDNSQuery,
		Target:        target,
		DNSQueryName:  name,
		DNSQueryType:  qtype,
		Regions:       []string{"syd"},
		PrimaryRegion: "syd",
		TimeoutMs:     2000,
	}
	m.Normalise()
	return m
}

func TestDNSProbeUp(t *testing.T) {
	addr := startDNSServer(t, answeringHandler(t, "status.example.com. 60 IN A 192.0.2.10"))

	prober := NewDNSProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), dnsMonitor(addr, "status.example.com", "A"), "syd")

	if !result.IsUp() {
		t.Fatalf("Expected up, got %q", result.Error)
	}
	if result.Timing.DNSLookup != result.Timing.Total || result.LatencyMs != result.Timing.Total {
		t.Errorf("DNS probes report the round trip as both DNS phase and total, got %+v latency=%d",
			result.Timing, result.LatencyMs)
	}
}

func TestDNSProbeKeywordAgainstAnswers(t *testing.T) {
	addr := startDNSServer(t, answeringHandler(t, "status.example.com. 60 IN A 192.0.2.10"))
	prober := NewDNSProber(ports.SystemClock{})

	t.Run("required address present", func(t *testing.T) {
		monitor := dnsMonitor(addr, "status.example.com", "A")
		monitor.ResponseKeyword = "192.0.2.10"
		result := prober.Probe(context.Background(), monitor, "syd")
		if !result.IsUp() {
			t.Fatalf("Expected up, got %q", result.Error)
		}
	})

	t.Run("required address missing", func(t *testing.T) {
		monitor := dnsMonitor(addr, "status.example.com", "A")
		monitor.ResponseKeyword = "198.51.100.1"
		result := prober.Probe(context.Background(), monitor, "syd")
		if result.IsUp() {
			t.Fatal("Expected down when the answer lacks the keyword")
		}
		if result.Error != "Response missing required keyword: 198.51.100.1" {
			t.Errorf("Unexpected error %q", result.Error)
		}
	})

	t.Run("forbidden address present", func(t *testing.T) {
		monitor := dnsMonitor(addr, "status.example.com", "A")
		monitor.ResponseForbiddenKeyword = "192.0.2.10"
		result := prober.Probe(context.Background(), monitor, "syd")
		if result.IsUp() {
			t.Fatal("Expected down when the answer contains the forbidden keyword")
		}
		if result.Error != "Response contains forbidden keyword: 192.0.2.10" {
			t.Errorf("Unexpected error %q", result.Error)
		}
	})
}

func TestDNSProbeNameError(t *testing.T) {
	addr := startDNSServer(t, rcodeHandler(dns.RcodeNameError))

	prober := NewDNSProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), dnsMonitor(addr, "gone.example.com", "A"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down on NXDOMAIN")
	}
	if result.Error != "Host not found" {
		t.Errorf("Expected Host not found, got %q", result.Error)
	}
}

func TestDNSProbeServerFailure(t *testing.T) {
	addr := startDNSServer(t, rcodeHandler(dns.RcodeServerFailure))

	prober := NewDNSProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), dnsMonitor(addr, "status.example.com", "A"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down on SERVFAIL")
	}
	if result.Error != "DNS query returned SERVFAIL" {
		t.Errorf("Unexpected error %q", result.Error)
	}
}

func TestDNSProbeEmptyAnswer(t *testing.T) {
	addr := startDNSServer(t, answeringHandler(t))

	prober := NewDNSProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), dnsMonitor(addr, "status.example.com", "A"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down on empty NOERROR")
	}
	if result.Error != "DNS query returned no answers" {
		t.Errorf("Unexpected error %q", result.Error)
	}
}

func TestDNSProbeUnknownQueryType(t *testing.T) {
	prober := NewDNSProber(ports.SystemClock{})
	result := prober.Probe(context.Background(), dnsMonitor("127.0.0.1:53", "status.example.com", "BOGUS"), "syd")

	if result.IsUp() {
		t.Fatal("Expected down for an unknown query type")
	}
	if result.Error != `Connection failed: unknown DNS query type "BOGUS"` {
		t.Errorf("Unexpected error %q", result.Error)
	}
}

func TestQueryTypeDefaultsToA(t *testing.T) {
	qtype, err := queryType("")
	if err != nil {
		t.Fatal(err)
	}
	if qtype != dns.TypeA {
		t.Errorf("Empty type should default to A, got %d", qtype)
	}

	qtype, err = queryType("txt")
	if err != nil {
		t.Fatal(err)
	}
	if qtype != dns.TypeTXT {
		t.Errorf("Lowercase txt should map to TXT, got %d", qtype)
	}
}
