package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/pkg/pool"
)

// Response bodies are read to completion for keyword checks but capped so a
// misconfigured monitor pointed at a large download cannot exhaust memory.
const maxBodyBytes = 3 << 20

// HTTPProber executes one HTTP(S) request per check with phase timings from
// httptrace callbacks. Every probe dials a fresh connection; a reused pooled
// connection would zero the DNS and connect phases and make the timings lie.
type HTTPProber struct {
	clock   ports.Clock
	buffers *pool.Pool[*bytes.Buffer]

	// tlsConfig is nil in production, leaving verification to the system
	// trust store. Tests point it at the ephemeral server certificate.
	tlsConfig *tls.Config
}

func NewHTTPProber(clock ports.Clock) *HTTPProber {
	buffers, _ := pool.NewLitePool(func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, 32*1024))
	})
	return &HTTPProber{clock: clock, buffers: buffers}
}

// phaseMarks collects the trace callback instants of one request.
type phaseMarks struct {
	start        time.Time
	dnsStart     time.Time
	dnsDone      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	wroteRequest time.Time
	firstByte    time.Time
}

func (m *phaseMarks) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { m.dnsStart = time.Now() },
		DNSDone:  func(httptrace.DNSDoneInfo) { m.dnsDone = time.Now() },
		ConnectStart: func(string, string) {
			if m.connectStart.IsZero() {
				m.connectStart = time.Now()
			}
		},
		ConnectDone: func(_, _ string, _ error) {
			if m.connectDone.IsZero() {
				m.connectDone = time.Now()
			}
		},
		TLSHandshakeStart:    func() { m.tlsStart = time.Now() },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { m.tlsDone = time.Now() },
		WroteRequest:         func(httptrace.WroteRequestInfo) { m.wroteRequest = time.Now() },
		GotFirstResponseByte: func() { m.firstByte = time.Now() },
	}
}

func (p *HTTPProber) Probe(ctx context.Context, monitor *domain.Monitor, region string) domain.CheckResult {
	result := domain.CheckResult{
		MonitorID:   monitor.ID,
		Region:      region,
		TimestampMs: ports.NowMs(p.clock),
		Status:      domain.CheckStatusDown,
	}

	timeout := time.Duration(monitor.EffectiveTimeoutMs()) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := p.buildRequest(ctx, monitor)
	if err != nil {
		result.Error = errConnectionFailed + err.Error()
		return result
	}

	marks := &phaseMarks{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), marks.trace()))

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       (&net.Dialer{}).DialContext,
		DisableKeepAlives: true,
		TLSClientConfig:   p.tlsConfig,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		// Targets are explicit, a redirect is an answer in itself.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	marks.start = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		result.Timing = marks.assemble(time.Now())
		result.LatencyMs = result.Timing.Total
		result.Error = Categorise(err)
		return result
	}
	defer resp.Body.Close()

	buf := p.buffers.Get()
	defer p.buffers.Put(buf)

	_, readErr := io.Copy(buf, io.LimitReader(resp.Body, maxBodyBytes))
	end := time.Now()

	result.Timing = marks.assemble(end)
	result.LatencyMs = result.Timing.Total

	if readErr != nil {
		result.Error = Categorise(readErr)
		return result
	}

	if errMsg := validateResponse(monitor, resp.StatusCode, buf.Bytes()); errMsg != "" {
		result.Error = errMsg
		return result
	}

	result.Status = domain.CheckStatusUp
	return result
}

func (p *HTTPProber) buildRequest(ctx context.Context, monitor *domain.Monitor) (*http.Request, error) {
	var body io.Reader
	if monitor.AllowsBody() && monitor.Body != "" {
		body = strings.NewReader(monitor.Body)
	}

	req, err := http.NewRequestWithContext(ctx, monitor.Method, monitor.Target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", constants.DefaultUserAgent)
	for k, v := range monitor.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// validateResponse applies the configured checks in order: status code,
// required keyword, forbidden keyword, then the JSON path expectation. The
// first failure wins.
func validateResponse(monitor *domain.Monitor, statusCode int, body []byte) string {
	if !monitor.IsExpectedCode(statusCode) {
		return unexpectedStatusError(statusCode, monitor.ExpectedCodes)
	}
	if kw := monitor.ResponseKeyword; kw != "" && !bytes.Contains(body, []byte(kw)) {
		return missingKeywordError(kw)
	}
	if kw := monitor.ResponseForbiddenKeyword; kw != "" && bytes.Contains(body, []byte(kw)) {
		return forbiddenKeywordError(kw)
	}
	if path := monitor.ResponseJSONPath; path != "" {
		value := gjson.GetBytes(body, path)
		if !value.Exists() {
			return jsonPathError(path, "", "")
		}
		if want := monitor.ResponseJSONExpect; want != "" && value.String() != want {
			return jsonPathError(path, value.String(), want)
		}
	}
	return ""
}

// assemble converts the trace marks into millisecond phase durations. Marks
// that never fired (IP-literal targets skip DNS, failures cut the sequence
// short) contribute zero.
func (m *phaseMarks) assemble(end time.Time) domain.TimingMetrics {
	var t domain.TimingMetrics

	if !m.dnsStart.IsZero() && !m.dnsDone.IsZero() {
		t.DNSLookup = m.dnsDone.Sub(m.dnsStart).Milliseconds()
	}
	if !m.connectStart.IsZero() && !m.connectDone.IsZero() {
		t.TCPConnect = m.connectDone.Sub(m.connectStart).Milliseconds()
	}
	if !m.tlsStart.IsZero() && !m.tlsDone.IsZero() {
		t.TLSHandshake = m.tlsDone.Sub(m.tlsStart).Milliseconds()
	}
	if !m.wroteRequest.IsZero() && !m.firstByte.IsZero() {
		t.TTFB = m.firstByte.Sub(m.wroteRequest).Milliseconds()
	}
	if !m.firstByte.IsZero() {
		t.ContentDownload = end.Sub(m.firstByte).Milliseconds()
	}
	if !m.start.IsZero() {
		t.Total = end.Sub(m.start).Milliseconds()
	}

	t.Clamp()
	return t
}
