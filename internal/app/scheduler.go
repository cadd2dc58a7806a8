package app

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/lookout-monitor/lookout/internal/adapter/aggregator"
	"github.com/lookout-monitor/lookout/internal/adapter/notify"
	"github.com/lookout-monitor/lookout/internal/adapter/probe"
	"github.com/lookout-monitor/lookout/internal/adapter/telemetry"
	"github.com/lookout-monitor/lookout/internal/config"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
	"github.com/lookout-monitor/lookout/pkg/eventbus"
)

// Scheduler embeds the minute cadence into serve mode: cron entries fire one
// probe tick per configured region plus one aggregation tick, against the
// same open store the query layer reads. Deployments with an external
// scheduler run the probe and aggregate subcommands instead and never
// construct one of these.
//
// Ticks are built fresh from the live config on every firing so a hot reload
// applies from the next tick. SkipIfStillRunning keeps a slow tick from
// overlapping itself; the store-level conditional write covers the
// cross-process case.
type Scheduler struct {
	cfg      func() *config.Config
	store    ports.KeyValueStore
	clock    ports.Clock
	metrics  *telemetry.Telemetry
	bus      *eventbus.Bus[domain.StatusEvent]
	notifier ports.Notifier
	logger   logger.StyledLogger

	cron    *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	entries int
}

func NewScheduler(cfg func() *config.Config, kv ports.KeyValueStore, metrics *telemetry.Telemetry, bus *eventbus.Bus[domain.StatusEvent], log logger.StyledLogger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    kv,
		clock:    ports.SystemClock{},
		metrics:  metrics,
		bus:      bus,
		notifier: notify.NewWebhook(cfg().Notification, log),
		logger:   log,
	}
}

// Start registers the cron entries and begins firing them. An invalid cron
// spec is a configuration error and fails startup.
func (s *Scheduler) Start(ctx context.Context) error {
	cfg := s.cfg()
	cronLog := &cronLogger{logger: s.logger}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))

	for _, region := range cfg.Scheduler.Regions {
		if _, err := s.cron.AddFunc(cfg.Scheduler.ProbeSpec, func() {
			s.probeTick(region)
		}); err != nil {
			return err
		}
		s.entries++
	}

	if _, err := s.cron.AddFunc(cfg.Scheduler.AggregateSpec, s.aggregateTick); err != nil {
		return err
	}
	s.entries++

	s.cron.Start()
	s.logger.Info("Embedded scheduler started",
		"regions", len(cfg.Scheduler.Regions),
		"probe_spec", cfg.Scheduler.ProbeSpec,
		"aggregate_spec", cfg.Scheduler.AggregateSpec)
	return nil
}

// Stop halts new firings and waits for in-flight ticks, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with ticks still running")
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) probeTick(region string) {
	cfg := s.cfg()
	driver := probe.NewDriver(probe.DriverConfig{
		Region:         region,
		Concurrency:    cfg.Probe.Concurrency,
		ICMPPrivileged: cfg.Probe.ICMPPrivileged,
	}, s.store, s.clock, s.logger, s.metrics)

	summary := driver.Run(s.runCtx, cfg.Monitors)
	if summary.WriteErrors > 0 {
		s.logger.Warn("Probe tick finished with write errors",
			"region", region,
			"write_errors", summary.WriteErrors)
	}
}

func (s *Scheduler) aggregateTick() {
	cfg := s.cfg()
	agg := aggregator.New(aggregator.Config{
		LookbackMs:   cfg.Aggregator.LookbackMs,
		Concurrency:  cfg.Aggregator.Concurrency,
		Notification: cfg.Notification,
		Location:     cfg.Location(),
	}, s.store, s.clock, s.notifier, s.logger, s.metrics)
	agg.AttachBus(s.bus)

	if _, err := agg.Run(s.runCtx, cfg.Monitors); err != nil {
		s.logger.Error("Aggregation tick failed", "error", err)
	}
}

// cronLogger adapts the styled logger to cron's logging interface. Cron
// chatter, skipped firings included, goes to debug; real errors keep their
// level.
type cronLogger struct {
	logger logger.StyledLogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}
