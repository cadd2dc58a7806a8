package domain

import (
	"strings"
	"testing"
)

func TestVoteThreshold(t *testing.T) {
	tests := []struct {
		name     string
		regions  []string
		override int
		expected int
	}{
		{"single region", []string{"syd"}, 0, 1},
		{"two regions", []string{"syd", "lon"}, 0, 1},
		{"three regions", []string{"syd", "lon", "iad"}, 0, 2},
		{"four regions", []string{"syd", "lon", "iad", "fra"}, 0, 2},
		{"five regions", []string{"a", "b", "c", "d", "e"}, 0, 3},
		{"override wins", []string{"a", "b", "c", "d", "e"}, 4, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Monitor{ID: "m1", Regions: tc.regions}
			if tc.override > 0 {
				m.Alerting = &AlertingConfig{DownVoteThreshold: tc.override}
			}
			if got := m.VoteThreshold(); got != tc.expected {
				t.Errorf("VoteThreshold() = %d, expected %d", got, tc.expected)
			}
		})
	}
}

func TestIsExpectedCode(t *testing.T) {
	tests := []struct {
		name     string
		codes    []int
		code     int
		expected bool
	}{
		{"default accepts 200", nil, 200, true},
		{"default accepts 206", nil, 206, true},
		{"default rejects 207", nil, 207, false},
		{"default rejects 301", nil, 301, false},
		{"default rejects 500", nil, 500, false},
		{"explicit accepts listed", []int{301, 302}, 301, true},
		{"explicit rejects unlisted 200", []int{301, 302}, 200, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Monitor{ExpectedCodes: tc.codes}
			if got := m.IsExpectedCode(tc.code); got != tc.expected {
				t.Errorf("IsExpectedCode(%d) = %v, expected %v", tc.code, got, tc.expected)
			}
		})
	}
}

func TestNormaliseInsertsPrimaryRegion(t *testing.T) {
	m := Monitor{ID: "m1", Method: "get", Regions: []string{"syd", "lon"}, PrimaryRegion: "iad"}
	m.Normalise()

	if m.Method != MethodGet {
		t.Errorf("method not uppercased: %q", m.Method)
	}
	if !m.AppliesToRegion("iad") {
		t.Error("primary region was not inserted into regions")
	}
	if len(m.Regions) != 3 {
		t.Errorf("expected 3 regions, got %v", m.Regions)
	}
}

func TestNormaliseDefaultsPrimaryToFirstRegion(t *testing.T) {
	m := Monitor{ID: "m1", Regions: []string{"lon", "syd"}}
	m.Normalise()
	if m.PrimaryRegion != "lon" {
		t.Errorf("expected primary lon, got %q", m.PrimaryRegion)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Monitor {
		return Monitor{
			ID:            "web-home",
			Name:          "Homepage",
			Method:        MethodGet,
			Target:        "https://example.com",
			Regions:       []string{"syd"},
			PrimaryRegion: "syd",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Monitor)
		wantErr string
	}{
		{"valid", func(m *Monitor) {}, ""},
		{"missing id", func(m *Monitor) { m.ID = "" }, "no id"},
		{"non-ascii id", func(m *Monitor) { m.ID = "wêb" }, "ASCII"},
		{"missing target", func(m *Monitor) { m.Target = "" }, "no target"},
		{"no regions", func(m *Monitor) { m.Regions = nil; m.PrimaryRegion = "" }, "no regions"},
		{"primary outside regions", func(m *Monitor) { m.PrimaryRegion = "lon" }, "not in regions"},
		{"unsupported method", func(m *Monitor) { m.Method = "BREW" }, "unsupported method"},
		{"tcp target without port", func(m *Monitor) { m.Method = MethodTCPPing; m.Target = "example.com" }, "host:port"},
		{"body on GET", func(m *Monitor) { m.Body = "x" }, "body not allowed"},
		{"dns query without name", func(m *Monitor) { m.Method = MethodDNSQuery }, "dns_query_name"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.mutate(&m)
			err := m.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestEffectiveTimeout(t *testing.T) {
	http := Monitor{Method: MethodGet}
	if got := http.EffectiveTimeoutMs(); got != DefaultHTTPTimeoutMs {
		t.Errorf("HTTP default timeout = %d", got)
	}
	tcp := Monitor{Method: MethodTCPPing}
	if got := tcp.EffectiveTimeoutMs(); got != DefaultTCPTimeoutMs {
		t.Errorf("TCP default timeout = %d", got)
	}
	custom := Monitor{Method: MethodGet, TimeoutMs: 1234}
	if got := custom.EffectiveTimeoutMs(); got != 1234 {
		t.Errorf("custom timeout = %d", got)
	}
}
