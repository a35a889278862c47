package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/store"
)

// OpenStore 按配置打开样本库。logger 只用于 badger 内部日志，可为 nil。
func OpenStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (core.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, core.Errorf(core.ModuleStore, core.ErrorCodeUnavailable, "store: redis %s: %v", cfg.Addr, err)
		}
		return store.NewRedisStoreFromClient(client), nil

	case "badger":
		bc := store.DefaultBadgerConfig(cfg.Path)
		bc.ReadOnly = cfg.ReadOnly
		bc.Logger = logger
		s, err := store.OpenBadgerStore(bc)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return s, nil

	default:
		return nil, core.Errorf(core.ModuleConfig, core.ErrorCodeNotSupported, "config: unsupported store backend %q", cfg.Backend)
	}
}
