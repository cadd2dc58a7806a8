package probe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
)

// MetricsRecorder receives per-check telemetry. Nil disables recording.
type MetricsRecorder interface {
	RecordCheck(monitorID, region, status string, duration time.Duration)
	RecordStoreWriteError(region string)
}

type DriverConfig struct {
	Region         string
	Concurrency    int
	ICMPPrivileged bool
}

// Driver runs one regional tick: select the monitors probed from this
// region, fan the checks out in parallel and persist every outcome. A check
// that panics or fails only affects its own record.
type Driver struct {
	store   ports.KeyValueStore
	clock   ports.Clock
	logger  logger.StyledLogger
	metrics MetricsRecorder

	http ports.Prober
	tcp  ports.Prober
	icmp ports.Prober
	dns  ports.Prober

	region      string
	concurrency int
}

func NewDriver(cfg DriverConfig, kv ports.KeyValueStore, clock ports.Clock, log logger.StyledLogger, metrics MetricsRecorder) *Driver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultProbeConcurrency
	}
	return &Driver{
		store:       kv,
		clock:       clock,
		logger:      log.WithRegion(cfg.Region),
		metrics:     metrics,
		http:        NewHTTPProber(clock),
		tcp:         NewTCPProber(clock),
		icmp:        NewICMPProber(clock, cfg.ICMPPrivileged),
		dns:         NewDNSProber(clock),
		region:      cfg.Region,
		concurrency: concurrency,
	}
}

// Run executes every applicable check once and returns the tick summary.
func (d *Driver) Run(ctx context.Context, monitors []domain.Monitor) ports.ProbeSummary {
	applicable := make([]domain.Monitor, 0, len(monitors))
	for _, m := range monitors {
		if m.AppliesToRegion(d.region) {
			applicable = append(applicable, m)
		}
	}

	d.logger.InfoWithCount("Running checks", len(applicable))

	var up, down, writeErrors atomic.Int64
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i := range applicable {
		monitor := applicable[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			started := time.Now()
			result := d.safeProbe(ctx, &monitor)
			elapsed := time.Since(started)

			if result.IsUp() {
				up.Add(1)
			} else {
				down.Add(1)
			}
			if d.metrics != nil {
				d.metrics.RecordCheck(monitor.ID, d.region, result.Status, elapsed)
			}

			writeErrors.Add(d.persist(ctx, result))
			d.logResult(&monitor, result)
		}()
	}
	wg.Wait()

	summary := ports.ProbeSummary{
		Region:      d.region,
		Checked:     len(applicable),
		Up:          int(up.Load()),
		Down:        int(down.Load()),
		WriteErrors: int(writeErrors.Load()),
	}
	d.logger.InfoWithNumbers("Tick complete: %s checked, %s up, %s down",
		int64(summary.Checked), int64(summary.Up), int64(summary.Down))
	return summary
}

// safeProbe isolates a panicking prober to its own result.
func (d *Driver) safeProbe(ctx context.Context, monitor *domain.Monitor) (result domain.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.CheckResult{
				MonitorID:   monitor.ID,
				Region:      d.region,
				TimestampMs: ports.NowMs(d.clock),
				Status:      domain.CheckStatusDown,
				Error:       errConnectionFailed + fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return d.proberFor(monitor).Probe(ctx, monitor, d.region)
}

func (d *Driver) proberFor(monitor *domain.Monitor) ports.Prober {
	switch monitor.Method {
	case domain.MethodTCPPing:
		return d.tcp
	case domain.MethodICMPPing:
		return d.icmp
	case domain.MethodDNSQuery:
		return d.dns
	default:
		return d.http
	}
}

// persist writes the check record then the latency record. The two writes
// are not atomic; the aggregator tolerates either being absent.
func (d *Driver) persist(ctx context.Context, result domain.CheckResult) int64 {
	var failures int64

	checkRec, err := store.CheckRecord(result)
	if err == nil {
		err = d.store.Put(ctx, checkRec)
	}
	if err != nil {
		failures++
		d.reportWriteError(result.MonitorID, "check", err)
	}

	latencyRec, err := store.LatencyRecord(result)
	if err == nil {
		err = d.store.Put(ctx, latencyRec)
	}
	if err != nil {
		failures++
		d.reportWriteError(result.MonitorID, "latency", err)
	}

	return failures
}

func (d *Driver) reportWriteError(monitorID, kind string, err error) {
	if d.metrics != nil {
		d.metrics.RecordStoreWriteError(d.region)
	}
	d.logger.ErrorWithMonitor("Failed to write "+kind+" record for", monitorID, "error", err)
}

func (d *Driver) logResult(monitor *domain.Monitor, result domain.CheckResult) {
	if result.IsUp() {
		d.logger.InfoWithMonitor("Check up:", monitor.ID,
			"latency_ms", result.LatencyMs,
			"ttfb_ms", result.Timing.TTFB)
		return
	}
	d.logger.WarnWithMonitor("Check down:", monitor.ID,
		"error", result.Error,
		"latency_ms", result.LatencyMs)
}
