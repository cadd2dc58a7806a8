package domain

import (
	"fmt"
	"strings"
)

const (
	MethodGet      = "GET"
	MethodPost     = "POST"
	MethodPut      = "PUT"
	MethodPatch    = "PATCH"
	MethodDelete   = "DELETE"
	MethodHead     = "HEAD"
	MethodOptions  = "OPTIONS"
	MethodTCPPing  = "TCP_PING"
	MethodICMPPing = "ICMP_PING"
	MethodDNSQuery = "DNS_QUERY"
)

const (
	DefaultHTTPTimeoutMs = 10000
	DefaultTCPTimeoutMs  = 5000
)

// Monitor declares one probe target and how to exercise it each tick.
// Parsed from MONITORS_CONFIG; immutable for the lifetime of a run.
type Monitor struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	Method                   string            `json:"method"`
	Target                   string            `json:"target"`
	TimeoutMs                int64             `json:"timeout_ms,omitempty"`
	ExpectedCodes            []int             `json:"expected_codes,omitempty"`
	Headers                  map[string]string `json:"headers,omitempty"`
	Body                     string            `json:"body,omitempty"`
	ResponseKeyword          string            `json:"response_keyword,omitempty"`
	ResponseForbiddenKeyword string            `json:"response_forbidden_keyword,omitempty"`
	ResponseJSONPath         string            `json:"response_json_path,omitempty"`
	ResponseJSONExpect       string            `json:"response_json_expect,omitempty"`
	DNSQueryName             string            `json:"dns_query_name,omitempty"`
	DNSQueryType             string            `json:"dns_query_type,omitempty"`
	Regions                  []string          `json:"regions"`
	PrimaryRegion            string            `json:"primary_region"`
	LatencyThresholdMs       int64             `json:"latency_threshold_ms,omitempty"`
	Alerting                 *AlertingConfig   `json:"alerting,omitempty"`
	Group                    string            `json:"group,omitempty"`
}

// AlertingConfig overrides the global notification defaults per monitor.
type AlertingConfig struct {
	GraceDownMinutes  int          `json:"grace_down_minutes,omitempty"`
	GraceSlowMinutes  int          `json:"grace_slow_minutes,omitempty"`
	DownVoteThreshold int          `json:"down_vote_threshold,omitempty"`
	Spike             *SpikeConfig `json:"spike,omitempty"`
}

// SpikeConfig enables latency spike detection against a rolling median baseline.
type SpikeConfig struct {
	Enabled               bool `json:"enabled"`
	BaselineWindowMinutes int  `json:"baseline_window_minutes,omitempty"`
	ThresholdPercent      int  `json:"threshold_percent,omitempty"`
}

// IsHTTP reports whether the monitor speaks HTTP rather than a raw probe.
func (m *Monitor) IsHTTP() bool {
	switch m.Method {
	case MethodTCPPing, MethodICMPPing, MethodDNSQuery:
		return false
	default:
		return true
	}
}

// AllowsBody reports whether the method carries a request body.
func (m *Monitor) AllowsBody() bool {
	switch m.Method {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

// EffectiveTimeoutMs applies the method-specific default when unset.
func (m *Monitor) EffectiveTimeoutMs() int64 {
	if m.TimeoutMs > 0 {
		return m.TimeoutMs
	}
	if m.IsHTTP() {
		return DefaultHTTPTimeoutMs
	}
	return DefaultTCPTimeoutMs
}

// IsExpectedCode checks status code membership; defaults to 200-206.
func (m *Monitor) IsExpectedCode(code int) bool {
	if len(m.ExpectedCodes) == 0 {
		return code >= 200 && code <= 206
	}
	for _, c := range m.ExpectedCodes {
		if c == code {
			return true
		}
	}
	return false
}

// AppliesToRegion reports whether this monitor is probed from the region.
func (m *Monitor) AppliesToRegion(region string) bool {
	for _, r := range m.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// VoteThreshold returns the number of down regions required for a down
// majority: the configured override, else ceil(|regions| / 2).
func (m *Monitor) VoteThreshold() int {
	if m.Alerting != nil && m.Alerting.DownVoteThreshold > 0 {
		return m.Alerting.DownVoteThreshold
	}
	return (len(m.Regions) + 1) / 2
}

// Normalise inserts the primary region into the region set if declared
// outside it and uppercases the method.
func (m *Monitor) Normalise() {
	m.Method = strings.ToUpper(strings.TrimSpace(m.Method))
	if m.Method == "" {
		m.Method = MethodGet
	}
	if m.PrimaryRegion != "" && !m.AppliesToRegion(m.PrimaryRegion) {
		m.Regions = append(m.Regions, m.PrimaryRegion)
	}
	if m.PrimaryRegion == "" && len(m.Regions) > 0 {
		m.PrimaryRegion = m.Regions[0]
	}
}

// Validate enforces the structural invariants of a monitor definition.
func (m *Monitor) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("monitor has no id")
	}
	for _, r := range m.ID {
		if r > 127 {
			return fmt.Errorf("monitor %q: id must be ASCII", m.ID)
		}
	}
	if m.Target == "" {
		return fmt.Errorf("monitor %q: no target", m.ID)
	}
	if len(m.Regions) == 0 {
		return fmt.Errorf("monitor %q: no regions", m.ID)
	}
	if !m.AppliesToRegion(m.PrimaryRegion) {
		return fmt.Errorf("monitor %q: primary region %q not in regions", m.ID, m.PrimaryRegion)
	}
	switch m.Method {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
	case MethodTCPPing:
		if !strings.Contains(m.Target, ":") {
			return fmt.Errorf("monitor %q: TCP_PING target must be host:port", m.ID)
		}
	case MethodICMPPing:
	case MethodDNSQuery:
		if m.DNSQueryName == "" {
			return fmt.Errorf("monitor %q: DNS_QUERY requires dns_query_name", m.ID)
		}
	default:
		return fmt.Errorf("monitor %q: unsupported method %q", m.ID, m.Method)
	}
	if m.Body != "" && !m.AllowsBody() {
		return fmt.Errorf("monitor %q: body not allowed for method %s", m.ID, m.Method)
	}
	return nil
}
