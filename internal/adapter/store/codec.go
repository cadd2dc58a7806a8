package store

import (
	"encoding/json"
	"fmt"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// Codec builds store records from domain values and back. Every value is
// stored as JSON so any driver backend stays inspectable with stock tooling.

func CheckRecord(res domain.CheckResult) (ports.Record, error) {
	value, err := json.Marshal(res)
	if err != nil {
		return ports.Record{}, fmt.Errorf("encode check result: %w", err)
	}
	return ports.Record{
		PK:    CheckPK(res.MonitorID),
		SK:    CheckSK(res.TimestampMs, res.Region),
		Value: value,
		TTL:   constants.DefaultCheckTTL,
	}, nil
}

func LatencyRecord(res domain.CheckResult) (ports.Record, error) {
	point := domain.LatencyPoint{
		MonitorID:   res.MonitorID,
		Region:      res.Region,
		TimestampMs: res.TimestampMs,
		LatencyMs:   res.LatencyMs,
		Timing:      res.Timing,
	}
	value, err := json.Marshal(point)
	if err != nil {
		return ports.Record{}, fmt.Errorf("encode latency point: %w", err)
	}
	return ports.Record{
		PK:    LatencyPK(res.MonitorID, res.Region),
		SK:    PadMs(res.TimestampMs),
		Value: value,
		TTL:   constants.DefaultCheckTTL,
	}, nil
}

func StateRecord(state domain.MonitorState) (ports.Record, error) {
	value, err := json.Marshal(state)
	if err != nil {
		return ports.Record{}, fmt.Errorf("encode monitor state: %w", err)
	}
	return ports.Record{PK: StatePK(state.MonitorID), SK: SKCurrent, Value: value}, nil
}

func IncidentRecord(inc domain.Incident) (ports.Record, error) {
	value, err := json.Marshal(inc)
	if err != nil {
		return ports.Record{}, fmt.Errorf("encode incident: %w", err)
	}
	return ports.Record{
		PK:    IncidentPK(inc.MonitorID),
		SK:    PadMs(inc.StartMs),
		Value: value,
		TTL:   constants.DefaultIncidentTTL,
	}, nil
}

func SummaryRecord(sum domain.GlobalSummary) (ports.Record, error) {
	value, err := json.Marshal(sum)
	if err != nil {
		return ports.Record{}, fmt.Errorf("encode global summary: %w", err)
	}
	return ports.Record{PK: GlobalStatePK, SK: SKSummary, Value: value}, nil
}

func DecodeCheck(rec ports.Record) (domain.CheckResult, error) {
	var res domain.CheckResult
	if err := json.Unmarshal(rec.Value, &res); err != nil {
		return domain.CheckResult{}, fmt.Errorf("decode check %s/%s: %w", rec.PK, rec.SK, err)
	}
	return res, nil
}

func DecodeLatency(rec ports.Record) (domain.LatencyPoint, error) {
	var point domain.LatencyPoint
	if err := json.Unmarshal(rec.Value, &point); err != nil {
		return domain.LatencyPoint{}, fmt.Errorf("decode latency %s/%s: %w", rec.PK, rec.SK, err)
	}
	return point, nil
}

func DecodeState(rec ports.Record) (domain.MonitorState, error) {
	var state domain.MonitorState
	if err := json.Unmarshal(rec.Value, &state); err != nil {
		return domain.MonitorState{}, fmt.Errorf("decode state %s: %w", rec.PK, err)
	}
	return state, nil
}

func DecodeIncident(rec ports.Record) (domain.Incident, error) {
	var inc domain.Incident
	if err := json.Unmarshal(rec.Value, &inc); err != nil {
		return domain.Incident{}, fmt.Errorf("decode incident %s/%s: %w", rec.PK, rec.SK, err)
	}
	return inc, nil
}

func DecodeSummary(rec ports.Record) (domain.GlobalSummary, error) {
	var sum domain.GlobalSummary
	if err := json.Unmarshal(rec.Value, &sum); err != nil {
		return domain.GlobalSummary{}, fmt.Errorf("decode global summary: %w", err)
	}
	return sum, nil
}
