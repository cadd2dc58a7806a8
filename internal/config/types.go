package config

import (
	"fmt"
	"time"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// Config holds all configuration for the application. The process-level
// sections come from lookout.yaml and LOOKOUT_* variables; the monitoring
// sections can additionally be injected wholesale as JSON env vars
// (MONITORS_CONFIG and friends), which take precedence over the file.
type Config struct {
	Filename    string            `yaml:"-" mapstructure:"-"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Probe       ProbeConfig       `yaml:"probe" mapstructure:"probe"`
	Aggregator  AggregatorConfig  `yaml:"aggregator" mapstructure:"aggregator"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" mapstructure:"scheduler"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Engineering EngineeringConfig `yaml:"engineering" mapstructure:"engineering"`

	Monitors           []domain.Monitor           `yaml:"monitors" mapstructure:"monitors"`
	Notification       domain.NotificationConfig  `yaml:"notification" mapstructure:"notification"`
	Maintenances       []domain.MaintenanceWindow `yaml:"maintenances" mapstructure:"maintenances"`
	Page               map[string]any             `yaml:"page" mapstructure:"page"`
	PasswordProtection string                     `yaml:"password_protection" mapstructure:"password_protection"`
}

// ServerConfig holds the query-layer HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RequestLogging  bool          `yaml:"request_logging" mapstructure:"request_logging"`
	AccessLog       bool          `yaml:"access_log" mapstructure:"access_log"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// Status pages usually sit behind a CDN or reverse proxy; with trust
	// enabled, forwarded-for headers from peers inside the CIDR list are
	// used as the client address in logs.
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs" mapstructure:"trusted_proxy_cidrs"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and parameterises the central store driver.
// TABLE_NAME maps onto Table, CENTRAL_REGION onto Locator: for the redis
// driver the locator is the address, for sqlite the database path.
type StoreConfig struct {
	Driver  string        `yaml:"driver" mapstructure:"driver"` // memory | redis | sqlite
	Table   string        `yaml:"table" mapstructure:"table"`
	Locator string        `yaml:"locator" mapstructure:"locator"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	SQLite  SQLiteConfig  `yaml:"sqlite" mapstructure:"sqlite"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RedisConfig holds redis driver settings beyond the locator address.
type RedisConfig struct {
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// SQLiteConfig holds sqlite driver settings beyond the locator path.
type SQLiteConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ProbeConfig drives the regional probe subcommand.
type ProbeConfig struct {
	Region         string `yaml:"region" mapstructure:"region"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	ICMPPrivileged bool   `yaml:"icmp_privileged" mapstructure:"icmp_privileged"`
}

// AggregatorConfig drives the aggregate subcommand.
type AggregatorConfig struct {
	LookbackMs  int64 `yaml:"lookback_ms" mapstructure:"lookback_ms"`
	Concurrency int   `yaml:"concurrency" mapstructure:"concurrency"`
}

// SchedulerConfig embeds a cron scheduler into serve mode so a single binary
// can run probes and aggregation without an external timer. Regions lists the
// vantage points the embedded scheduler probes as.
type SchedulerConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	ProbeSpec     string   `yaml:"probe_spec" mapstructure:"probe_spec"`
	AggregateSpec string   `yaml:"aggregate_spec" mapstructure:"aggregate_spec"`
	Regions       []string `yaml:"regions" mapstructure:"regions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// EngineeringConfig holds development/debugging configuration
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats" mapstructure:"show_nerdstats"`
}
