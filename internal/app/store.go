package app

import (
	"context"
	"fmt"

	"github.com/Zerofisher/icmpwatch/internal/config"
	"github.com/Zerofisher/icmpwatch/pkg/store"
	"github.com/Zerofisher/icmpwatch/pkg/store/csvlog"
	"github.com/Zerofisher/icmpwatch/pkg/store/redislog"
	"github.com/Zerofisher/icmpwatch/pkg/store/sqlite"
)

// OpenLog opens the configured metric log backend. Readers pass readOnly so
// that a missing SQLite database is reported as no data instead of created.
func OpenLog(ctx context.Context, cfg config.LogConfig, readOnly bool) (store.Log, error) {
	switch cfg.Backend {
	case config.BackendCSV, "":
		return csvlog.New(cfg.Path), nil
	case config.BackendSQLite:
		return sqlite.New(sqlite.Config{DBPath: cfg.Path, ReadOnly: readOnly, WAL: !readOnly}), nil
	case config.BackendRedis:
		return redislog.New(ctx, redislog.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

// LogLocation describes where the log lives, for messages.
func LogLocation(cfg config.LogConfig) string {
	if cfg.Backend == config.BackendRedis {
		return fmt.Sprintf("redis://%s/%d %s", cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Key)
	}
	return cfg.Path
}
