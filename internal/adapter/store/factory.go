package store

import (
	"fmt"

	"github.com/lookout-monitor/lookout/internal/adapter/store/memory"
	"github.com/lookout-monitor/lookout/internal/adapter/store/redisstore"
	"github.com/lookout-monitor/lookout/internal/adapter/store/sqlitestore"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

// DriverConfig selects and parameterises a central store driver. Table is
// the key namespace; Locator is the redis address or the sqlite path.
type DriverConfig struct {
	Driver        string
	Table         string
	Locator       string
	RedisPassword string
	RedisDB       int
}

// OpenDriver builds the configured driver. The memory driver is the default
// so a bare binary works out of the box.
func OpenDriver(cfg DriverConfig) (ports.KeyValueStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		if cfg.Locator == "" {
			return nil, fmt.Errorf("redis driver requires a locator address")
		}
		return redisstore.New(redisstore.Config{
			Addr:      cfg.Locator,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.Table,
		}), nil
	case "sqlite":
		path := cfg.Locator
		if path == "" {
			path = cfg.Table + ".db"
		}
		return sqlitestore.Open(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
