package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"github.com/spf13/viper"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/adapter/telemetry"
	"github.com/lookout-monitor/lookout/internal/app/middleware"
	"github.com/lookout-monitor/lookout/internal/config"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
	"github.com/lookout-monitor/lookout/internal/router"
	"github.com/lookout-monitor/lookout/pkg/eventbus"
)

const responseCacheEntries = 512

// Application is the serve-mode wiring: the read-only status API over the
// central store, plus the optional embedded scheduler running probe and
// aggregation ticks in the same process.
type Application struct {
	configMu  sync.RWMutex
	config    *config.Config
	server    *http.Server
	logger    logger.StyledLogger
	registry  *router.RouteRegistry
	store     ports.KeyValueStore
	clock     ports.Clock
	telemetry *telemetry.Telemetry
	scheduler *Scheduler
	statusBus *eventbus.Bus[domain.StatusEvent]
	busStop   func()
	respCache otter.Cache[string, []byte]
	errCh     chan error
	StartTime time.Time
}

// New creates a new application instance
func New(startTime time.Time, styledLogger logger.StyledLogger) (*Application, error) {
	registry := router.NewRouteRegistry(styledLogger)

	app := &Application{
		logger:    styledLogger,
		registry:  registry,
		clock:     ports.SystemClock{},
		telemetry: telemetry.New(),
		statusBus: eventbus.New[domain.StatusEvent](16),
		errCh:     make(chan error, 1),
		StartTime: startTime,
	}

	cfg, err := config.Load(func() {
		// Hot reloading of the watched file, re-running the same pipeline as
		// startup. A broken edit logs and keeps the previous config live.
		if err := viper.ReadInConfig(); err != nil {
			styledLogger.Error("Failed to re-read config file", "error", err)
			return
		}

		newConfig := config.DefaultConfig()
		if err := config.Unmarshal(newConfig); err != nil {
			styledLogger.Error("Failed to unmarshal new config", "error", err)
			return
		}
		if err := config.ApplyEnvOverrides(newConfig); err != nil {
			styledLogger.Error("Failed to overlay env config", "error", err)
			return
		}
		if err := newConfig.Finalise(); err != nil {
			styledLogger.Error("Reloaded config failed validation", "error", err)
			return
		}

		app.setConfig(newConfig)
		app.invalidateCache()
		styledLogger.InfoWithCount("Configuration reloaded", len(newConfig.Monitors))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.setConfig(cfg)

	kv, err := store.OpenDriver(store.DriverConfig{
		Driver:        cfg.Store.Driver,
		Table:         cfg.Store.Table,
		Locator:       cfg.Store.Locator,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	app.store = kv

	respCache, err := otter.MustBuilder[string, []byte](responseCacheEntries).
		Cost(func(_ string, _ []byte) uint32 { return 1 }).
		WithTTL(cfg.Server.CacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build response cache: %w", err)
	}
	app.respCache = respCache

	if cfg.PasswordProtection != "" {
		middleware.WarnIfWeakCredential(cfg.PasswordProtection, styledLogger)
	}

	if cfg.Scheduler.Enabled {
		app.scheduler = NewScheduler(app.currentConfig, kv, app.telemetry, app.statusBus, styledLogger)
	}

	app.server = &http.Server{
		Addr:         cfg.Server.GetAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Handler:      nil, // Will be set in Start()
	}

	return app, nil
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	events, unsubscribe := a.statusBus.Subscribe(ctx)
	a.busStop = unsubscribe
	go a.watchStatusEvents(ctx, events)

	a.startWebServer()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			a.logger.Error("Scheduler startup error", "error", err)
			a.errCh <- err
		}
	}

	a.logger.Info("Lookout started", "bind", a.server.Addr)
	return nil
}

// Stop stops the application
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.currentConfig().Server.ShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop(shutdownCtx)
	}
	if a.busStop != nil {
		a.busStop()
	}
	a.statusBus.Shutdown()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	a.respCache.Close()

	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close store", "error", err)
	}

	return nil
}

// watchStatusEvents drops cached responses the moment a monitor changes
// status, so transitions appear before the cache TTL would surface them.
func (a *Application) watchStatusEvents(ctx context.Context, events <-chan domain.StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			a.invalidateCache()
			a.logger.Debug("Cache invalidated on status change",
				"monitor", event.MonitorID,
				"previous", string(event.Previous),
				"current", string(event.Current))
		}
	}
}

func (a *Application) setConfig(cfg *config.Config) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.config = cfg
}

func (a *Application) currentConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}

func (a *Application) invalidateCache() {
	a.respCache.Clear()
}
