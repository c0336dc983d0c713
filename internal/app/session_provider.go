package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/session"
)

var dialRedis = session.DialRedis

// resolveSessionManager returns the redis client too when one was opened so
// the caller can close it and collect metrics from it.
func resolveSessionManager(ctx context.Context, log *logger.Logger, cfg Config) (session.Manager, *goredis.Client, error) {
	store := strings.TrimSpace(strings.ToLower(cfg.SessionStore))
	log.Info("Selecting session store", "session_store", store, "max_history", cfg.MaxHistory)

	switch store {
	case SessionStoreMemory:
		return session.NewMemoryManager(cfg.MaxHistory), nil, nil
	case SessionStoreRedis:
		rdb, err := dialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis session store: %w", err)
		}
		return session.NewRedisManager(log, rdb, session.RedisConfig{
			Addr:       cfg.RedisAddr,
			TTL:        cfg.SessionTTL(),
			MaxHistory: cfg.MaxHistory,
		}), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store %q", store)
	}
}
