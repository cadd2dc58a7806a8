package config

import (
	"os"
	"testing"
	"time"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != DefaultHost {
		t.Errorf("Expected host %s, got %s", DefaultHost, cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}

	if cfg.Store.Driver != "memory" {
		t.Errorf("Expected store driver 'memory', got %s", cfg.Store.Driver)
	}
	if cfg.Store.Table != "lookout" {
		t.Errorf("Expected store table 'lookout', got %s", cfg.Store.Table)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format 'json', got %s", cfg.Logging.Format)
	}

	if cfg.Aggregator.LookbackMs != constants.DefaultLookbackMs {
		t.Errorf("Expected lookback %d, got %d", constants.DefaultLookbackMs, cfg.Aggregator.LookbackMs)
	}
	if cfg.Notification.GracePeriodMinutes != constants.DefaultGracePeriodMinutes {
		t.Errorf("Expected grace period %d, got %d",
			constants.DefaultGracePeriodMinutes, cfg.Notification.GracePeriodMinutes)
	}
	if cfg.Scheduler.ProbeSpec != "* * * * *" {
		t.Errorf("Expected minute cadence probe spec, got %q", cfg.Scheduler.ProbeSpec)
	}

	if cfg.Engineering.ShowNerdStats != false {
		t.Error("Expected ShowNerdStats to be false by default")
	}
}

func TestApplyEnvOverrides_MonitorsConfig(t *testing.T) {
	monitorsJSON := `[
		{
			"id": "api",
			"name": "Public API",
			"method": "GET",
			"target": "https://api.example.com/health",
			"regions": ["us-east", "eu-west"],
			"primary_region": "us-east",
			"latency_threshold_ms": 500
		},
		{
			"id": "ssh",
			"method": "TCP_PING",
			"target": "bastion.example.com:22",
			"regions": ["us-east"],
			"primary_region": "us-east"
		}
	]`
	os.Setenv(EnvMonitorsConfig, monitorsJSON)
	defer os.Unsetenv(EnvMonitorsConfig)

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if err := cfg.Finalise(); err != nil {
		t.Fatalf("Finalise failed: %v", err)
	}

	if len(cfg.Monitors) != 2 {
		t.Fatalf("Expected 2 monitors, got %d", len(cfg.Monitors))
	}
	if cfg.Monitors[0].ID != "api" || cfg.Monitors[0].LatencyThresholdMs != 500 {
		t.Errorf("First monitor not parsed as expected: %+v", cfg.Monitors[0])
	}
	if cfg.Monitors[1].Method != domain.MethodTCPPing {
		t.Errorf("Expected TCP_PING method, got %s", cfg.Monitors[1].Method)
	}
}

func TestApplyEnvOverrides_NotificationConfig(t *testing.T) {
	notificationJSON := `{
		"webhook": {
			"url": "https://hooks.example.com/alert",
			"payload_type": "json",
			"payload": {"text": "$MSG"}
		},
		"timezone": "Australia/Melbourne",
		"grace_period": 10,
		"skip_ids": ["noisy"],
		"skip_error_change_notification": true
	}`
	os.Setenv(EnvNotificationConfig, notificationJSON)
	defer os.Unsetenv(EnvNotificationConfig)

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.Notification.Webhook == nil || cfg.Notification.Webhook.URL != "https://hooks.example.com/alert" {
		t.Fatalf("Webhook not parsed: %+v", cfg.Notification.Webhook)
	}
	if cfg.Notification.GracePeriodMinutes != 10 {
		t.Errorf("Expected grace period 10, got %d", cfg.Notification.GracePeriodMinutes)
	}
	if !cfg.Notification.ShouldSkip("noisy") {
		t.Error("Expected 'noisy' on the skip list")
	}
	if cfg.Notification.ShouldSkip("api") {
		t.Error("Did not expect 'api' on the skip list")
	}
	if !cfg.Notification.SkipErrorChangeNotification {
		t.Error("Expected skip_error_change_notification true")
	}
}

func TestApplyEnvOverrides_Maintenances(t *testing.T) {
	maintenancesJSON := `[
		{"body": "Planned DB upgrade", "start": "2025-07-01T01:00:00Z", "end": "2025-07-01T03:00:00Z", "monitors": ["api"]},
		{"body": "Open-ended incident follow-up", "start": "2025-07-02T00:00:00Z"}
	]`
	os.Setenv(EnvMaintenancesConfig, maintenancesJSON)
	defer os.Unsetenv(EnvMaintenancesConfig)

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if len(cfg.Maintenances) != 2 {
		t.Fatalf("Expected 2 maintenance windows, got %d", len(cfg.Maintenances))
	}
	first := cfg.Maintenances[0]
	if first.End == nil || first.End.Sub(first.Start) != 2*time.Hour {
		t.Errorf("First window bounds wrong: start=%v end=%v", first.Start, first.End)
	}
	if cfg.Maintenances[1].End != nil {
		t.Error("Second window should be open-ended")
	}
}

func TestApplyEnvOverrides_MaintenanceBadTime(t *testing.T) {
	os.Setenv(EnvMaintenancesConfig, `[{"body": "x", "start": "yesterday-ish"}]`)
	defer os.Unsetenv(EnvMaintenancesConfig)

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err == nil {
		t.Fatal("Expected error for unparseable maintenance start")
	}
}

func TestApplyEnvOverrides_StorePointers(t *testing.T) {
	os.Setenv(EnvTableName, "uptime-prod")
	os.Setenv(EnvCentralRegion, "redis.internal:6379")
	os.Setenv(EnvPasswordProtection, "ops:hunter2")
	defer func() {
		os.Unsetenv(EnvTableName)
		os.Unsetenv(EnvCentralRegion)
		os.Unsetenv(EnvPasswordProtection)
	}()

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.Store.Table != "uptime-prod" {
		t.Errorf("Expected table override, got %s", cfg.Store.Table)
	}
	if cfg.Store.Locator != "redis.internal:6379" {
		t.Errorf("Expected locator override, got %s", cfg.Store.Locator)
	}
	if cfg.PasswordProtection != "ops:hunter2" {
		t.Errorf("Expected password protection override, got %s", cfg.PasswordProtection)
	}
}

func TestFinalise_DuplicateMonitorIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitors = []domain.Monitor{
		{ID: "api", Target: "https://a.example.com", Regions: []string{"us"}, PrimaryRegion: "us"},
		{ID: "api", Target: "https://b.example.com", Regions: []string{"us"}, PrimaryRegion: "us"},
	}

	if err := cfg.Finalise(); err == nil {
		t.Fatal("Expected duplicate id error")
	}
}

func TestFinalise_PrimaryRegionAutoInserted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitors = []domain.Monitor{
		{ID: "api", Target: "https://a.example.com", Regions: []string{"us"}, PrimaryRegion: "eu"},
	}

	if err := cfg.Finalise(); err != nil {
		t.Fatalf("Finalise failed: %v", err)
	}
	if !cfg.Monitors[0].AppliesToRegion("eu") {
		t.Error("Expected primary region to be auto-inserted into regions")
	}
	if len(cfg.Monitors[0].Regions) != 2 {
		t.Errorf("Expected 2 regions after auto-insert, got %v", cfg.Monitors[0].Regions)
	}
}

func TestFinalise_BadTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notification.Timezone = "Mars/Olympus_Mons"

	if err := cfg.Finalise(); err == nil {
		t.Fatal("Expected error for unknown timezone")
	}
}

func TestFinalise_UnknownStoreDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "etcd"

	if err := cfg.Finalise(); err == nil {
		t.Fatal("Expected error for unknown store driver")
	}
}

func TestMonitorByID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitors = []domain.Monitor{
		{ID: "api", Target: "https://a.example.com", Regions: []string{"us"}, PrimaryRegion: "us"},
	}

	if m := cfg.MonitorByID("api"); m == nil || m.ID != "api" {
		t.Errorf("Expected to find monitor 'api', got %+v", m)
	}
	if m := cfg.MonitorByID("missing"); m != nil {
		t.Errorf("Expected nil for unknown id, got %+v", m)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notification.Timezone = "Nowhere/Void"

	if loc := cfg.Location(); loc != time.UTC {
		t.Errorf("Expected UTC fallback, got %v", loc)
	}
}
