package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
	"github.com/lookout-monitor/lookout/pkg/eventbus"
)

const minuteMs = int64(time.Minute / time.Millisecond)

// MetricsRecorder receives per-tick telemetry. Nil disables recording.
type MetricsRecorder interface {
	RecordMonitorStatus(monitorID string, status domain.MonitorStatus, latencyMs int64)
	RecordNotification(kind string)
	RecordAggregationError(monitorID string)
}

type Config struct {
	LookbackMs   int64
	Concurrency  int
	Notification domain.NotificationConfig
	Location     *time.Location
}

// Aggregator owns the STATE#, INCIDENT# and STATE#GLOBAL key spaces. Each
// tick it reads the regional observations, votes them into a status, advances
// the per-monitor state machine and decides which notifications fire.
type Aggregator struct {
	store    ports.KeyValueStore
	clock    ports.Clock
	notifier ports.Notifier
	logger   logger.StyledLogger
	metrics  MetricsRecorder
	bus      *eventbus.Bus[domain.StatusEvent]

	cfg      Config
	location *time.Location
}

// Summary reports one aggregation tick.
type Summary struct {
	TickMs        int64
	Processed     int
	Up            int
	Degraded      int
	Down          int
	Errors        int
	Notifications int
}

func New(cfg Config, kv ports.KeyValueStore, clock ports.Clock, notifier ports.Notifier, log logger.StyledLogger, metrics MetricsRecorder) *Aggregator {
	if cfg.LookbackMs <= 0 {
		cfg.LookbackMs = constants.DefaultLookbackMs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.DefaultAggregatorConcurrency
	}
	if notifier == nil {
		notifier = ports.NoopNotifier{}
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	return &Aggregator{
		store:    kv,
		clock:    clock,
		notifier: notifier,
		logger:   log,
		metrics:  metrics,
		cfg:      cfg,
		location: location,
	}
}

// AttachBus wires the in-process status event stream. Optional.
func (a *Aggregator) AttachBus(bus *eventbus.Bus[domain.StatusEvent]) {
	a.bus = bus
}

// outcome is one monitor's share of a tick. stale marks a lost conditional
// write: the state still counts for the summary but its events are dropped,
// whichever aggregator won the write owns the alerting for this tick.
type outcome struct {
	status domain.MonitorStatus
	events []domain.NotificationEvent
	stale  bool
	err    error
}

// Run executes one aggregation tick over the full monitor set and returns
// the tick summary. A failing monitor is logged and skipped; it never stops
// the others.
func (a *Aggregator) Run(ctx context.Context, monitors []domain.Monitor) (Summary, error) {
	tickMs := ports.NowMs(a.clock)
	summary := Summary{TickMs: tickMs}

	a.logger.InfoWithCount("Aggregating monitors", len(monitors))

	outcomes := make([]outcome, len(monitors))
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i := range monitors {
		g.Go(func() error {
			outcomes[i] = a.processMonitor(ctx, tickMs, &monitors[i])
			return nil
		})
	}
	_ = g.Wait()

	var events []domain.NotificationEvent
	for i := range outcomes {
		out := &outcomes[i]
		if out.err != nil {
			summary.Errors++
			if a.metrics != nil {
				a.metrics.RecordAggregationError(monitors[i].ID)
			}
			a.logger.ErrorWithMonitor("Aggregation failed for", monitors[i].ID, "error", out.err)
			continue
		}
		summary.Processed++
		switch out.status {
		case domain.StatusDown:
			summary.Down++
		case domain.StatusDegraded:
			summary.Degraded++
		default:
			summary.Up++
		}
		if !out.stale {
			events = append(events, out.events...)
		}
	}

	a.writeSummary(ctx, tickMs, &summary)

	summary.Notifications = len(events)
	if len(events) > 0 {
		if err := a.notifier.Dispatch(ctx, events); err != nil {
			a.logger.Error("Notification dispatch failed", "error", err)
		}
		if a.metrics != nil {
			for _, ev := range events {
				a.metrics.RecordNotification(ev.Kind)
			}
		}
	}

	a.logger.InfoWithNumbers("Tick complete: %s up, %s degraded, %s down",
		int64(summary.Up), int64(summary.Degraded), int64(summary.Down))
	return summary, nil
}

func (a *Aggregator) processMonitor(ctx context.Context, tickMs int64, monitor *domain.Monitor) outcome {
	obs, err := a.collect(ctx, tickMs, monitor)
	if err != nil {
		return outcome{err: fmt.Errorf("collect observations: %w", err)}
	}

	prior, err := a.loadState(ctx, monitor.ID)
	if err != nil {
		return outcome{err: fmt.Errorf("load state: %w", err)}
	}

	next, regionsDown := deriveState(tickMs, monitor, obs)

	wasDown := prior.Status.IsDown()
	isDown := next.Status.IsDown()

	if isDown {
		next.DownSinceMs = prior.DownSinceMs
		if !wasDown || next.DownSinceMs == 0 {
			next.DownSinceMs = tickMs
		}
		next.LastNotifiedDownMs = prior.LastNotifiedDownMs
	}

	if monitor.LatencyThresholdMs > 0 && next.PrimaryLatencyMs > monitor.LatencyThresholdMs {
		next.SlowSinceMs = prior.SlowSinceMs
		if next.SlowSinceMs == 0 {
			next.SlowSinceMs = tickMs
		}
		next.LastNotifiedSlowMs = prior.LastNotifiedSlowMs
	}

	switch {
	case isDown:
		if err := a.upsertIncident(ctx, monitor, next, regionsDown); err != nil {
			return outcome{err: err}
		}
	case wasDown:
		if err := a.closeIncident(ctx, tickMs, monitor.ID, prior.DownSinceMs); err != nil {
			return outcome{err: err}
		}
	}

	events := a.decideNotifications(ctx, tickMs, monitor, &prior, next)

	rec, err := store.StateRecord(*next)
	if err != nil {
		return outcome{err: err}
	}
	if err := a.store.PutIfNewer(ctx, rec, next.LastCheckMs); err != nil {
		if errors.Is(err, ports.ErrConditionFailed) {
			a.logger.WarnWithMonitor("State already written this tick for", monitor.ID)
			return outcome{status: next.Status, stale: true}
		}
		return outcome{err: fmt.Errorf("write state: %w", err)}
	}

	if prior.Status != next.Status {
		a.logger.InfoMonitorStatus("Status change:", monitor.Name, next.Status,
			"previous", string(prior.Status),
			"regions_down", len(regionsDown))
		if a.bus != nil {
			a.bus.Publish(domain.StatusEvent{
				MonitorID: monitor.ID,
				Name:      monitor.Name,
				Previous:  prior.Status,
				Current:   next.Status,
				LatencyMs: next.PrimaryLatencyMs,
				AtMs:      tickMs,
			})
		}
	}
	if a.metrics != nil {
		a.metrics.RecordMonitorStatus(monitor.ID, next.Status, next.PrimaryLatencyMs)
	}

	return outcome{status: next.Status, events: events}
}

// collect fans the per-region lookback queries out in parallel and keeps the
// most recent observation per region. Regions without a fresh record are
// absent from the result.
func (a *Aggregator) collect(ctx context.Context, tickMs int64, monitor *domain.Monitor) (map[string]domain.CheckResult, error) {
	results := make([]*domain.CheckResult, len(monitor.Regions))

	g, gctx := errgroup.WithContext(ctx)
	for i, region := range monitor.Regions {
		g.Go(func() error {
			res, err := a.latestObservation(gctx, monitor.ID, region, tickMs)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	obs := make(map[string]domain.CheckResult, len(monitor.Regions))
	for i, res := range results {
		if res != nil {
			obs[monitor.Regions[i]] = *res
		}
	}
	return obs, nil
}

// latestObservation scans the lookback window newest-first and stops at the
// first record from the wanted region.
func (a *Aggregator) latestObservation(ctx context.Context, monitorID, region string, tickMs int64) (*domain.CheckResult, error) {
	records, err := a.store.Query(ctx, store.CheckPK(monitorID), ports.QueryOptions{
		After:      store.PadMs(tickMs - a.cfg.LookbackMs),
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		_, recRegion, skErr := store.SplitCheckSK(rec.SK)
		if skErr != nil || recRegion != region {
			continue
		}
		res, decodeErr := store.DecodeCheck(rec)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return &res, nil
	}
	return nil, nil
}

func (a *Aggregator) loadState(ctx context.Context, monitorID string) (domain.MonitorState, error) {
	rec, err := a.store.Get(ctx, store.StatePK(monitorID), store.SKCurrent)
	if errors.Is(err, ports.ErrNotFound) {
		// First sighting: a fresh monitor starts from up so an immediate
		// down majority still registers as a transition.
		return domain.MonitorState{MonitorID: monitorID, Status: domain.StatusUp}, nil
	}
	if err != nil {
		return domain.MonitorState{}, err
	}
	return store.DecodeState(rec)
}

// deriveState votes the regional observations into the next state. Episode
// fields (down_since, slow_since, last_notified_*) are left zero; the caller
// carries them over from the prior state.
func deriveState(tickMs int64, monitor *domain.Monitor, obs map[string]domain.CheckResult) (*domain.MonitorState, []string) {
	next := &domain.MonitorState{
		MonitorID:      monitor.ID,
		RegionStatuses: make(map[string]domain.RegionStatus, len(obs)),
		LastCheckMs:    tickMs,
	}

	var regionsDown []string
	for _, region := range monitor.Regions {
		res, ok := obs[region]
		if !ok {
			continue
		}
		next.RegionStatuses[region] = domain.RegionStatus{Status: res.Status, LatencyMs: res.LatencyMs}
		if !res.IsUp() {
			regionsDown = append(regionsDown, region)
		}
	}
	sort.Strings(regionsDown)

	switch {
	case len(regionsDown) >= monitor.VoteThreshold():
		next.Status = domain.StatusDown
	case len(regionsDown) > 0:
		next.Status = domain.StatusDegraded
	default:
		next.Status = domain.StatusUp
	}

	if primary, ok := obs[monitor.PrimaryRegion]; ok {
		next.PrimaryLatencyMs = primary.LatencyMs
		next.PrimaryTiming = primary.Timing
	}

	if next.Status.IsDown() {
		next.LastError = downError(monitor, obs, regionsDown)
	}

	return next, regionsDown
}

// downError picks the text shown in incidents and alerts: the primary
// region's error when the primary is down, else the first down region's.
func downError(monitor *domain.Monitor, obs map[string]domain.CheckResult, regionsDown []string) string {
	if primary, ok := obs[monitor.PrimaryRegion]; ok && !primary.IsUp() && primary.Error != "" {
		return primary.Error
	}
	for _, region := range regionsDown {
		if res, ok := obs[region]; ok && res.Error != "" {
			return res.Error
		}
	}
	return ""
}

func (a *Aggregator) upsertIncident(ctx context.Context, monitor *domain.Monitor, next *domain.MonitorState, regionsDown []string) error {
	rec, err := store.IncidentRecord(domain.Incident{
		MonitorID:   monitor.ID,
		StartMs:     next.DownSinceMs,
		Error:       next.LastError,
		RegionsDown: regionsDown,
	})
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}
	return nil
}

// closeIncident stamps end_ms on the episode that just recovered. Keyed by
// the state's down_since so an expired or foreign record is never closed by
// mistake; the newest-first fallback covers states written before the episode
// key existed.
func (a *Aggregator) closeIncident(ctx context.Context, tickMs int64, monitorID string, downSinceMs int64) error {
	if downSinceMs > 0 {
		rec, err := a.store.Get(ctx, store.IncidentPK(monitorID), store.PadMs(downSinceMs))
		switch {
		case err == nil:
			return a.stampIncidentEnd(ctx, tickMs, rec)
		case !errors.Is(err, ports.ErrNotFound):
			return fmt.Errorf("load incident: %w", err)
		}
	}

	records, err := a.store.Query(ctx, store.IncidentPK(monitorID), ports.QueryOptions{Descending: true, Limit: 1})
	if err != nil {
		return fmt.Errorf("find open incident: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	return a.stampIncidentEnd(ctx, tickMs, records[0])
}

func (a *Aggregator) stampIncidentEnd(ctx context.Context, tickMs int64, rec ports.Record) error {
	inc, err := store.DecodeIncident(rec)
	if err != nil {
		return err
	}
	if !inc.IsOpen() {
		return nil
	}
	inc.EndMs = tickMs
	updated, err := store.IncidentRecord(inc)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, updated); err != nil {
		return fmt.Errorf("close incident: %w", err)
	}
	return nil
}

// decideNotifications applies the edge-trigger rules and advances the
// last_notified_* bookkeeping on next. Skipped monitors return early: their
// state and incidents are already updated, they just never alert, and the
// bookkeeping stays untouched so un-skipping one mid-incident alerts then.
func (a *Aggregator) decideNotifications(ctx context.Context, tickMs int64, monitor *domain.Monitor, prior, next *domain.MonitorState) []domain.NotificationEvent {
	if a.cfg.Notification.ShouldSkip(monitor.ID) {
		return nil
	}

	var events []domain.NotificationEvent
	emit := func(kind, message string) {
		events = append(events, domain.NewNotificationEvent(kind, monitor.ID, monitor.Name, message, tickMs))
	}

	wasDown := prior.Status.IsDown()
	isDown := next.Status.IsDown()

	if isDown {
		graceDownMs := int64(a.cfg.Notification.GraceMinutesFor(monitor)) * minuteMs
		announced := next.LastNotifiedDownMs != 0 && next.LastNotifiedDownMs >= next.DownSinceMs
		switch {
		case !announced && tickMs-next.DownSinceMs >= graceDownMs:
			next.LastNotifiedDownMs = tickMs
			emit(domain.NotificationDown, a.downMessage(monitor, next))
		case announced && !a.cfg.Notification.SkipErrorChangeNotification &&
			next.LastError != "" && next.LastError != prior.LastError:
			// Still down, but the failure mode itself changed.
			next.LastNotifiedDownMs = tickMs
			emit(domain.NotificationDown, a.downMessage(monitor, next))
		}
	} else if wasDown && prior.LastNotifiedDownMs != 0 {
		emit(domain.NotificationUp, a.upMessage(monitor, tickMs, prior.DownSinceMs))
	}

	if monitor.LatencyThresholdMs > 0 {
		graceSlowMs := int64(a.cfg.Notification.SlowGraceMinutesFor(monitor)) * minuteMs
		switch {
		case next.SlowSinceMs != 0 && next.LastNotifiedSlowMs == 0 &&
			tickMs-next.SlowSinceMs >= graceSlowMs:
			next.LastNotifiedSlowMs = tickMs
			emit(domain.NotificationSlow, a.slowMessage(monitor, next))
		case next.SlowSinceMs == 0 && prior.SlowSinceMs != 0 && prior.LastNotifiedSlowMs != 0:
			emit(domain.NotificationFastAgain, a.fastMessage(monitor, next.PrimaryLatencyMs))
		}
	}

	if spikeEnabled(monitor) && !isDown && next.PrimaryLatencyMs > 0 {
		verdict, err := a.evaluateSpike(ctx, tickMs, monitor, next.PrimaryLatencyMs, next.PrimaryTiming)
		if err != nil {
			a.logger.WarnWithMonitor("Spike baseline read failed for", monitor.ID, "error", err)
		} else if verdict.Fired {
			emit(domain.NotificationSpike, a.spikeMessage(monitor, next.PrimaryLatencyMs, verdict))
		}
	}

	return events
}

func spikeEnabled(monitor *domain.Monitor) bool {
	return monitor.Alerting != nil && monitor.Alerting.Spike != nil && monitor.Alerting.Spike.Enabled
}

func (a *Aggregator) writeSummary(ctx context.Context, tickMs int64, summary *Summary) {
	rec, err := store.SummaryRecord(domain.GlobalSummary{
		OverallUp:       summary.Up,
		OverallDown:     summary.Down,
		OverallDegraded: summary.Degraded,
		LastUpdateMs:    tickMs,
	})
	if err == nil {
		err = a.store.Put(ctx, rec)
	}
	if err != nil {
		a.logger.Error("Failed to write global summary", "error", err)
	}
}

func queryAfter(sinceMs int64) ports.QueryOptions {
	return ports.QueryOptions{After: store.PadMs(sinceMs)}
}
