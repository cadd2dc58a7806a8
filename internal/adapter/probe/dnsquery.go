package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// DNSProber asks the target resolver one question per check and treats a
// NOERROR response with at least one answer as up. The keyword checks run
// against the rendered answer section, so an A monitor can assert a specific
// address and a TXT monitor a payload substring.
type DNSProber struct {
	clock ports.Clock
}

func NewDNSProber(clock ports.Clock) *DNSProber {
	return &DNSProber{clock: clock}
}

func (p *DNSProber) Probe(ctx context.Context, monitor *domain.Monitor, region string) domain.CheckResult {
	result := domain.CheckResult{
		MonitorID:   monitor.ID,
		Region:      region,
		TimestampMs: ports.NowMs(p.clock),
		Status:      domain.CheckStatusDown,
	}

	qtype, err := queryType(monitor.DNSQueryType)
	if err != nil {
		result.Error = errConnectionFailed + err.Error()
		return result
	}

	server := monitor.Target
	if _, _, splitErr := net.SplitHostPort(server); splitErr != nil {
		server = net.JoinHostPort(server, "53")
	}

	timeout := time.Duration(monitor.EffectiveTimeoutMs()) * time.Millisecond
	client := &dns.Client{Timeout: timeout}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(monitor.DNSQueryName), qtype)
	query.RecursionDesired = true

	reply, rtt, err := client.ExchangeContext(ctx, query, server)
	if err != nil {
		result.Error = Categorise(err)
		return result
	}

	ms := rtt.Milliseconds()
	result.LatencyMs = ms
	result.Timing.DNSLookup = ms
	result.Timing.Total = ms

	if reply.Rcode != dns.RcodeSuccess {
		if reply.Rcode == dns.RcodeNameError {
			result.Error = errHostNotFound
		} else {
			result.Error = fmt.Sprintf("DNS query returned %s", dns.RcodeToString[reply.Rcode])
		}
		return result
	}
	if len(reply.Answer) == 0 {
		result.Error = "DNS query returned no answers"
		return result
	}

	answers := renderAnswers(reply.Answer)
	if kw := monitor.ResponseKeyword; kw != "" && !strings.Contains(answers, kw) {
		result.Error = missingKeywordError(kw)
		return result
	}
	if kw := monitor.ResponseForbiddenKeyword; kw != "" && strings.Contains(answers, kw) {
		result.Error = forbiddenKeywordError(kw)
		return result
	}

	result.Status = domain.CheckStatusUp
	return result
}

func queryType(name string) (uint16, error) {
	if name == "" {
		return dns.TypeA, nil
	}
	qtype, ok := dns.StringToType[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("unknown DNS query type %q", name)
	}
	return qtype, nil
}

func renderAnswers(answers []dns.RR) string {
	var b strings.Builder
	for _, rr := range answers {
		b.WriteString(rr.String())
		b.WriteByte('\n')
	}
	return b.String()
}
