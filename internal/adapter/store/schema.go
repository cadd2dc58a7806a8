package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout of the central store. Timestamps inside sort keys are UTC
// milliseconds rendered as 13-digit zero-padded decimals, which keeps
// lexicographic order identical to chronological order until year 2286.
//
//	CHECK#<monitor_id>              / <ts>#<region>   probe observations
//	LATENCY#<monitor_id>#<region>   / <ts>            chart history
//	STATE#<monitor_id>              / CURRENT         aggregated state
//	INCIDENT#<monitor_id>           / <ts>            downtime episodes
//	STATE#GLOBAL                    / SUMMARY         fleet counters

const (
	prefixCheck    = "CHECK#"
	prefixLatency  = "LATENCY#"
	prefixState    = "STATE#"
	prefixIncident = "INCIDENT#"

	SKCurrent = "CURRENT"
	SKSummary = "SUMMARY"

	GlobalStatePK = "STATE#GLOBAL"

	tsDigits = 13
)

func CheckPK(monitorID string) string {
	return prefixCheck + monitorID
}

func LatencyPK(monitorID, region string) string {
	return prefixLatency + monitorID + "#" + region
}

func StatePK(monitorID string) string {
	return prefixState + monitorID
}

func IncidentPK(monitorID string) string {
	return prefixIncident + monitorID
}

// StatePKPrefix covers every per-monitor state key; GlobalStatePK also
// matches, callers filter it out when enumerating monitors.
func StatePKPrefix() string {
	return prefixState
}

func IncidentPKPrefix() string {
	return prefixIncident
}

// PadMs renders a millisecond timestamp as a fixed-width sort key component.
func PadMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := strconv.FormatInt(ms, 10)
	if len(s) >= tsDigits {
		return s
	}
	return strings.Repeat("0", tsDigits-len(s)) + s
}

// ParseMs reads a PadMs-formatted component back to a millisecond value.
func ParseMs(s string) (int64, error) {
	ms, err := strconv.ParseInt(strings.TrimLeft(s, "0"), 10, 64)
	if err != nil {
		if strings.Trim(s, "0") == "" && s != "" {
			return 0, nil
		}
		return 0, fmt.Errorf("malformed timestamp key %q: %w", s, err)
	}
	return ms, nil
}

// CheckSK builds the sort key of one observation: timestamp then region so
// range reads stay time-ordered and ties break on the region string.
func CheckSK(timestampMs int64, region string) string {
	return PadMs(timestampMs) + "#" + region
}

// SplitCheckSK recovers (timestamp, region) from a check sort key.
func SplitCheckSK(sk string) (int64, string, error) {
	idx := strings.IndexByte(sk, '#')
	if idx < 0 {
		return 0, "", fmt.Errorf("malformed check sort key %q", sk)
	}
	ms, err := ParseMs(sk[:idx])
	if err != nil {
		return 0, "", err
	}
	return ms, sk[idx+1:], nil
}

// MonitorIDFromStatePK strips the STATE# prefix; empty for non-state keys.
func MonitorIDFromStatePK(pk string) string {
	if pk == GlobalStatePK || !strings.HasPrefix(pk, prefixState) {
		return ""
	}
	return strings.TrimPrefix(pk, prefixState)
}

// MonitorIDFromIncidentPK strips the INCIDENT# prefix.
func MonitorIDFromIncidentPK(pk string) string {
	return strings.TrimPrefix(pk, prefixIncident)
}
