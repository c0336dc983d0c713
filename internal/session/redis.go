package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	DefaultKeyPrefix = "rag"
	DefaultTTL       = 24 * time.Hour
)

type RedisConfig struct {
	Addr       string
	KeyPrefix  string
	TTL        time.Duration
	MaxHistory int
}

// RedisManager stores each session as a list of JSON messages at
// <prefix>:session:list:<id>. Ids come from INCR <prefix>:seq, which no
// client-supplied id can address.
type RedisManager struct {
	log        *logger.Logger
	rdb        *goredis.Client
	prefix     string
	ttl        time.Duration
	maxHistory int
}

// DialRedis connects and pings before returning.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisManager(log *logger.Logger, rdb *goredis.Client, cfg RedisConfig) *RedisManager {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &RedisManager{
		log:        log.With("service", "RedisSessionManager"),
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

func (r *RedisManager) Close() error { return r.rdb.Close() }

func (r *RedisManager) seqKey() string                  { return r.prefix + ":seq" }
func (r *RedisManager) listKey(sessionID string) string { return r.prefix + ":session:list:" + sessionID }

func (r *RedisManager) CreateSession(ctx context.Context) (string, error) {
	n, err := r.rdb.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return "", fmt.Errorf("next session id: %w", err)
	}
	id := sessionName(n)
	r.log.Debug("session created", "session_id", id)
	return id, nil
}

func (r *RedisManager) AddMessage(ctx context.Context, sessionID, role, content string) error {
	raw, err := json.Marshal(Message{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	limit := int64(2 * r.maxHistory)
	key := r.listKey(sessionID)
	_, err = r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		p.LTrim(ctx, key, -limit, -1)
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisManager) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error {
	return addExchange(ctx, r, sessionID, userMessage, assistantMessage)
}

func (r *RedisManager) ConversationHistory(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	msgs, err := r.Messages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return formatHistory(msgs), nil
}

func (r *RedisManager) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	raws, err := r.rdb.LRange(ctx, r.listKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			r.log.Warn("skipping undecodable session message", "session_id", sessionID, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ClearSession drops the history; unknown or expired ids are a no-op.
func (r *RedisManager) ClearSession(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.listKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisManager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.listKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}
