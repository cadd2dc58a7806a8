package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/env"
	"github.com/lookout-monitor/lookout/internal/util"
)

const (
	DefaultPort = 3911
	DefaultHost = "localhost"

	// Deployment-contract env vars: whole config sections injected as JSON
	// strings. They override whatever the file declares.
	EnvMonitorsConfig     = "MONITORS_CONFIG"
	EnvNotificationConfig = "NOTIFICATION_CONFIG"
	EnvMaintenancesConfig = "MAINTENANCES_CONFIG"
	EnvPageConfig         = "PAGE_CONFIG"
	EnvPasswordProtection = "PASSWORD_PROTECTION"
	EnvTableName          = "TABLE_NAME"
	EnvCentralRegion      = "CENTRAL_REGION"

	// EnvICMPPrivileged flips the ICMP prober onto raw sockets; the default
	// UDP mode works unprivileged on most distributions.
	EnvICMPPrivileged = "LOOKOUT_ICMP_PRIVILEGED"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
			CacheTTL:        constants.DefaultBadgeCacheTTL,
		},
		Store: StoreConfig{
			Driver:  "memory",
			Table:   "lookout",
			Timeout: 5 * time.Second,
			SQLite: SQLiteConfig{
				SweepInterval: time.Minute,
			},
		},
		Probe: ProbeConfig{
			Concurrency: constants.DefaultProbeConcurrency,
		},
		Aggregator: AggregatorConfig{
			LookbackMs:  constants.DefaultLookbackMs,
			Concurrency: constants.DefaultAggregatorConcurrency,
		},
		Scheduler: SchedulerConfig{
			// Minute cadence; serve mode only acts on these when enabled.
			ProbeSpec:     "* * * * *",
			AggregateSpec: "* * * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Notification: domain.NotificationConfig{
			Timezone:           "UTC",
			GracePeriodMinutes: constants.DefaultGracePeriodMinutes,
		},
	}
}

// Load reads lookout.yaml plus LOOKOUT_* variables, layers the JSON env-var
// sections on top, then validates. A non-nil onReload is invoked whenever
// the watched config file changes on disk.
func Load(onReload func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("lookout")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/lookout")

	viper.SetEnvPrefix("LOOKOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have LOOKOUT_CONFIG_FILE env var
		if configFile := os.Getenv("LOOKOUT_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := Unmarshal(config); err != nil {
		return nil, err
	}
	config.Filename = viper.ConfigFileUsed()

	if err := ApplyEnvOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Finalise(); err != nil {
		return nil, err
	}

	if onReload != nil {
		viper.OnConfigChange(func(fsnotify.Event) { onReload() })
		viper.WatchConfig()
	}

	return config, nil
}

// Unmarshal decodes viper's merged settings into the config struct. The
// extra hook lets maintenance windows carry RFC3339 timestamps in YAML.
func Unmarshal(config *Config) error {
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(config, hooks); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// maintenanceEnv is the wire shape of one MAINTENANCES_CONFIG entry. Bounds
// arrive as strings so deployments are not forced into a single time format.
type maintenanceEnv struct {
	Monitors []string `json:"monitors,omitempty"`
	Title    string   `json:"title,omitempty"`
	Body     string   `json:"body"`
	Start    string   `json:"start"`
	End      string   `json:"end,omitempty"`
	Color    string   `json:"color,omitempty"`
}

// ApplyEnvOverrides layers the JSON env-var config surface over whatever the
// file provided. Each variable replaces its section wholesale.
func ApplyEnvOverrides(cfg *Config) error {
	if raw := os.Getenv(EnvMonitorsConfig); raw != "" {
		var monitors []domain.Monitor
		if err := json.Unmarshal([]byte(raw), &monitors); err != nil {
			return fmt.Errorf("parse %s: %w", EnvMonitorsConfig, err)
		}
		cfg.Monitors = monitors
	}

	if raw := os.Getenv(EnvNotificationConfig); raw != "" {
		var notification domain.NotificationConfig
		if err := json.Unmarshal([]byte(raw), &notification); err != nil {
			return fmt.Errorf("parse %s: %w", EnvNotificationConfig, err)
		}
		cfg.Notification = notification
	}

	if raw := os.Getenv(EnvMaintenancesConfig); raw != "" {
		var entries []maintenanceEnv
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return fmt.Errorf("parse %s: %w", EnvMaintenancesConfig, err)
		}
		windows := make([]domain.MaintenanceWindow, 0, len(entries))
		for i, entry := range entries {
			start := util.ParseTime(entry.Start)
			if start == nil {
				return fmt.Errorf("parse %s: entry %d has unparseable start %q", EnvMaintenancesConfig, i, entry.Start)
			}
			window := domain.MaintenanceWindow{
				Monitors: entry.Monitors,
				Title:    entry.Title,
				Body:     entry.Body,
				Start:    *start,
				Color:    entry.Color,
			}
			if entry.End != "" {
				end := util.ParseTime(entry.End)
				if end == nil {
					return fmt.Errorf("parse %s: entry %d has unparseable end %q", EnvMaintenancesConfig, i, entry.End)
				}
				window.End = end
			}
			windows = append(windows, window)
		}
		cfg.Maintenances = windows
	}

	if raw := os.Getenv(EnvPageConfig); raw != "" {
		var page map[string]any
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			return fmt.Errorf("parse %s: %w", EnvPageConfig, err)
		}
		cfg.Page = page
	}

	if v := os.Getenv(EnvPasswordProtection); v != "" {
		cfg.PasswordProtection = v
	}
	if v := os.Getenv(EnvTableName); v != "" {
		cfg.Store.Table = v
	}
	if v := os.Getenv(EnvCentralRegion); v != "" {
		cfg.Store.Locator = v
	}
	if os.Getenv(EnvICMPPrivileged) != "" {
		cfg.Probe.ICMPPrivileged = env.GetEnvBoolOrDefault(EnvICMPPrivileged, cfg.Probe.ICMPPrivileged)
	}

	return nil
}

// Finalise normalises the monitor set and enforces its structural invariants:
// unique ascii ids, primary region membership, method-specific requirements.
func (c *Config) Finalise() error {
	seen := make(map[string]struct{}, len(c.Monitors))
	for i := range c.Monitors {
		monitor := &c.Monitors[i]
		monitor.Normalise()
		if err := monitor.Validate(); err != nil {
			return err
		}
		if _, dup := seen[monitor.ID]; dup {
			return fmt.Errorf("duplicate monitor id %q", monitor.ID)
		}
		seen[monitor.ID] = struct{}{}
	}

	if c.Notification.GracePeriodMinutes <= 0 {
		c.Notification.GracePeriodMinutes = constants.DefaultGracePeriodMinutes
	}
	if c.Notification.Timezone == "" {
		c.Notification.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Notification.Timezone); err != nil {
		return fmt.Errorf("invalid notification timezone %q: %w", c.Notification.Timezone, err)
	}

	if c.Aggregator.LookbackMs <= 0 {
		c.Aggregator.LookbackMs = constants.DefaultLookbackMs
	}
	if c.Aggregator.Concurrency <= 0 {
		c.Aggregator.Concurrency = constants.DefaultAggregatorConcurrency
	}
	if c.Probe.Concurrency <= 0 {
		c.Probe.Concurrency = constants.DefaultProbeConcurrency
	}
	if c.Server.CacheTTL <= 0 {
		c.Server.CacheTTL = constants.DefaultBadgeCacheTTL
	}
	if _, err := util.ParseTrustedCIDRs(c.Server.TrustedProxyCIDRs); err != nil {
		return fmt.Errorf("invalid trusted proxy CIDRs: %w", err)
	}

	switch c.Store.Driver {
	case "memory", "redis", "sqlite":
	case "":
		c.Store.Driver = "memory"
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	return nil
}

// MonitorByID finds a configured monitor; nil when absent.
func (c *Config) MonitorByID(id string) *domain.Monitor {
	for i := range c.Monitors {
		if c.Monitors[i].ID == id {
			return &c.Monitors[i]
		}
	}
	return nil
}

// Location resolves the configured notification timezone, falling back to
// UTC rather than failing a tick over a bad zone name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Notification.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
