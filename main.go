package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/lookout-monitor/lookout/internal/adapter/aggregator"
	"github.com/lookout-monitor/lookout/internal/adapter/notify"
	"github.com/lookout-monitor/lookout/internal/adapter/probe"
	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/app"
	"github.com/lookout-monitor/lookout/internal/config"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/env"
	"github.com/lookout-monitor/lookout/internal/logger"
	"github.com/lookout-monitor/lookout/internal/version"
	"github.com/lookout-monitor/lookout/pkg/container"
	"github.com/lookout-monitor/lookout/pkg/format"
	"github.com/lookout-monitor/lookout/pkg/nerdstats"
	"github.com/lookout-monitor/lookout/pkg/profiler"
)

// Subcommands: probe runs one regional tick, aggregate one fusion tick,
// serve the query API with the optional embedded scheduler. The one-shot
// commands are what an external minute-cadence scheduler invokes; serve is
// the single-binary deployment.
func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)

	command, args := splitCommand(os.Args[1:])
	if command == "version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}
	if command == "serve" {
		version.PrintVersionInfo(false, vlog)
	}

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logInstance)

	if profilerAddr := env.GetEnvOrDefault("LOOKOUT_PROFILER_ADDR", ""); profilerAddr != "" {
		profiler.InitialiseProfiler(profilerAddr)
	}

	// setup: graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	var code int
	switch command {
	case "probe":
		code = runProbe(ctx, args, styledLogger)
	case "aggregate":
		code = runAggregate(ctx, styledLogger)
	case "serve":
		code = runServe(ctx, startTime, styledLogger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected probe, aggregate, serve or version)\n", command)
		code = 2
	}

	cancel()
	cleanup()
	os.Exit(code)
}

// splitCommand peels the subcommand off the argument list. A bare invocation
// or one starting with a flag means serve, which keeps `lookout` and
// `lookout --version` working as before.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "serve", nil
	}
	if args[0] == "--version" || args[0] == "-version" {
		return "version", nil
	}
	if args[0][0] == '-' {
		return "serve", args
	}
	return args[0], args[1:]
}

// runProbe executes one regional probe tick and exits non-zero when any
// record failed to persist, so external schedulers can alarm on it.
func runProbe(ctx context.Context, args []string, styledLogger logger.StyledLogger) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	region := fs.String("region", "", "region identifier this probe worker reports as")
	_ = fs.Parse(args)

	cfg, err := config.Load(nil)
	if err != nil {
		styledLogger.Error("Failed to load configuration", "error", err)
		return 1
	}

	if *region == "" {
		*region = cfg.Probe.Region
	}
	if *region == "" {
		styledLogger.Error("No probe region configured: pass --region or set probe.region")
		return 2
	}

	kv, err := openStore(cfg)
	if err != nil {
		styledLogger.Error("Failed to open store", "error", err)
		return 1
	}
	defer kv.Close()

	driver := probe.NewDriver(probe.DriverConfig{
		Region:         *region,
		Concurrency:    cfg.Probe.Concurrency,
		ICMPPrivileged: cfg.Probe.ICMPPrivileged,
	}, kv, ports.SystemClock{}, styledLogger, nil)

	summary := driver.Run(ctx, cfg.Monitors)
	if summary.WriteErrors > 0 {
		return 1
	}
	return 0
}

// runAggregate executes one aggregation tick over every configured monitor.
func runAggregate(ctx context.Context, styledLogger logger.StyledLogger) int {
	cfg, err := config.Load(nil)
	if err != nil {
		styledLogger.Error("Failed to load configuration", "error", err)
		return 1
	}

	kv, err := openStore(cfg)
	if err != nil {
		styledLogger.Error("Failed to open store", "error", err)
		return 1
	}
	defer kv.Close()

	notifier := notify.NewWebhook(cfg.Notification, styledLogger)
	agg := aggregator.New(aggregator.Config{
		LookbackMs:   cfg.Aggregator.LookbackMs,
		Concurrency:  cfg.Aggregator.Concurrency,
		Notification: cfg.Notification,
		Location:     cfg.Location(),
	}, kv, ports.SystemClock{}, notifier, styledLogger, nil)

	summary, err := agg.Run(ctx, cfg.Monitors)
	if err != nil {
		styledLogger.Error("Aggregation tick failed", "error", err)
		return 1
	}
	if summary.Errors > 0 {
		return 1
	}
	return 0
}

func runServe(ctx context.Context, startTime time.Time, styledLogger logger.StyledLogger) int {
	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	application, err := app.New(startTime, styledLogger)
	if err != nil {
		styledLogger.Error("Failed to create application", "error", err)
		return 1
	}

	if err := application.Start(ctx); err != nil {
		styledLogger.Error("Failed to start application", "error", err)
		return 1
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime)

	styledLogger.Info("Lookout has shutdown")
	return 0
}

func openStore(cfg *config.Config) (ports.KeyValueStore, error) {
	return store.OpenDriver(store.DriverConfig{
		Driver:        cfg.Store.Driver,
		Table:         cfg.Store.Table,
		Locator:       cfg.Store.Locator,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
	})
}

func reportProcessStats(logger logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)

	if buildInfo := stats.GetBuildInfoSummary(); len(buildInfo) > 0 {
		var buildArgs []any
		for key, value := range buildInfo {
			buildArgs = append(buildArgs, key, value)
		}
		logger.Info("Build Info", buildArgs...)
	}

	logger.Info("Process Health Summary",
		"memory_pressure", stats.GetMemoryPressure(),
		"goroutine_status", stats.GetGoroutineHealthStatus(),
		"uptime", format.Duration(stats.Uptime),
		"avg_gc_pause", nerdstats.CalculateAverageGCPause(stats),
	)
}

// buildLoggerConfig creates logger config from environment variables with
// defaults. File logging defaults off inside containers, where stdout is
// already collected.
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("LOOKOUT_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("LOOKOUT_FILE_OUTPUT", !container.IsContainerised()),
		LogDir:     env.GetEnvOrDefault("LOOKOUT_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("LOOKOUT_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("LOOKOUT_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("LOOKOUT_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("LOOKOUT_THEME", "default"),
	}
}
