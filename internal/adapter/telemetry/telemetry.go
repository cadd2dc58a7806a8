package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// Telemetry is the prometheus surface shared by both tick drivers and the
// query layer: per-check counters from the probes, fleet gauges from the
// aggregator and request metrics from the API, one registry, one /metrics.
type Telemetry struct {
	registry *prometheus.Registry

	checksTotal      *prometheus.CounterVec
	checkDuration    *prometheus.HistogramVec
	storeWriteErrors *prometheus.CounterVec

	monitorStatus      *prometheus.GaugeVec
	primaryLatency     *prometheus.GaugeVec
	notificationsTotal *prometheus.CounterVec
	aggregationErrors  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),

		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_checks_total",
			Help: "Probe checks executed, by monitor, region and outcome.",
		}, []string{"monitor", "region", "status"}),

		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lookout_check_duration_seconds",
			Help:    "Wall time of one probe check, by monitor and region.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"monitor", "region"}),

		storeWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_store_write_errors_total",
			Help: "Failed record writes from probe ticks, by region.",
		}, []string{"region"}),

		monitorStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lookout_monitor_status",
			Help: "Aggregated monitor status: 0 up, 1 degraded, 2 down.",
		}, []string{"monitor"}),

		primaryLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lookout_monitor_primary_latency_ms",
			Help: "Primary region latency reported by the last aggregation.",
		}, []string{"monitor"}),

		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_notifications_total",
			Help: "Notification events decided by the aggregator, by kind.",
		}, []string{"kind"}),

		aggregationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_aggregation_errors_total",
			Help: "Monitors skipped by an aggregation tick, by monitor.",
		}, []string{"monitor"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_http_requests_total",
			Help: "API requests served, by route, method and status code.",
		}, []string{"path", "method", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lookout_http_request_duration_seconds",
			Help:    "API request latency, by route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"path"}),
	}

	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.checksTotal,
		t.checkDuration,
		t.storeWriteErrors,
		t.monitorStatus,
		t.primaryLatency,
		t.notificationsTotal,
		t.aggregationErrors,
		t.httpRequests,
		t.httpDuration,
	)
	return t
}

func (t *Telemetry) RecordCheck(monitorID, region, status string, duration time.Duration) {
	t.checksTotal.WithLabelValues(monitorID, region, status).Inc()
	t.checkDuration.WithLabelValues(monitorID, region).Observe(duration.Seconds())
}

func (t *Telemetry) RecordStoreWriteError(region string) {
	t.storeWriteErrors.WithLabelValues(region).Inc()
}

func (t *Telemetry) RecordMonitorStatus(monitorID string, status domain.MonitorStatus, latencyMs int64) {
	t.monitorStatus.WithLabelValues(monitorID).Set(statusValue(status))
	t.primaryLatency.WithLabelValues(monitorID).Set(float64(latencyMs))
}

func (t *Telemetry) RecordNotification(kind string) {
	t.notificationsTotal.WithLabelValues(kind).Inc()
}

func (t *Telemetry) RecordAggregationError(monitorID string) {
	t.aggregationErrors.WithLabelValues(monitorID).Inc()
}

// RecordHTTPRequest is fed the route pattern, never the raw URL, to keep
// label cardinality bounded.
func (t *Telemetry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	t.httpRequests.WithLabelValues(path, method, statusClass(status)).Inc()
	t.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// Handler serves the registry in the text exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func statusValue(status domain.MonitorStatus) float64 {
	switch status {
	case domain.StatusDown:
		return 2
	case domain.StatusDegraded:
		return 1
	default:
		return 0
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
