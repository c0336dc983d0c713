package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

func exerciseManager(t *testing.T, m Manager) {
	t.Helper()
	ctx := context.Background()

	id, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	msgs, err := m.Messages(ctx, id)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("new session: want empty got=%v", msgs)
	}
	other, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if other == id {
		t.Fatalf("session ids must be unique: %s", id)
	}

	if err := m.AddExchange(ctx, id, "q1", "a1"); err != nil {
		t.Fatalf("AddExchange: %v", err)
	}
	hist, err := m.ConversationHistory(ctx, id)
	if err != nil {
		t.Fatalf("ConversationHistory: %v", err)
	}
	if want := "User: q1\nAssistant: a1"; hist != want {
		t.Fatalf("history: want=%q got=%q", want, hist)
	}

	// max history 2 keeps the last four messages.
	for _, q := range []string{"q2", "q3"} {
		if err := m.AddExchange(ctx, id, q, "a"+q[1:]); err != nil {
			t.Fatalf("AddExchange: %v", err)
		}
	}
	msgs, _ = m.Messages(ctx, id)
	want := []Message{
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
		{Role: RoleUser, Content: "q3"},
		{Role: RoleAssistant, Content: "a3"},
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Fatalf("trimmed messages (-want +got):\n%s", diff)
	}

	for _, missing := range []string{"", "session_does_not_exist"} {
		h, err := m.ConversationHistory(ctx, missing)
		if err != nil || h != "" {
			t.Fatalf("history for %q: want empty got=%q err=%v", missing, h, err)
		}
	}

	if err := m.ClearSession(ctx, id); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if h, _ := m.ConversationHistory(ctx, id); h != "" {
		t.Fatalf("cleared history: want empty got=%q", h)
	}
	if err := m.ClearSession(ctx, "session_does_not_exist"); err != nil {
		t.Fatalf("ClearSession unknown: %v", err)
	}

	if err := m.AddMessage(ctx, "external", RoleUser, "hi"); err != nil {
		t.Fatalf("AddMessage to new id: %v", err)
	}
	if h, _ := m.ConversationHistory(ctx, "external"); h != "User: hi" {
		t.Fatalf("implicit session: got=%q", h)
	}
	if err := m.DeleteSession(ctx, "external"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if h, _ := m.ConversationHistory(ctx, "external"); h != "" {
		t.Fatalf("deleted session: got=%q", h)
	}
}

func TestMemoryManager(t *testing.T) {
	m := NewMemoryManager(2)
	exerciseManager(t, m)
}

func TestMemorySessionIDs(t *testing.T) {
	m := NewMemoryManager(2)
	ctx := context.Background()
	for i, want := range []string{"session_1", "session_2", "session_3"} {
		got, _ := m.CreateSession(ctx)
		if got != want {
			t.Fatalf("id %d: want=%s got=%s", i, want, got)
		}
	}
}

// newTestRedis uses REDIS_ADDR when set and an in-process miniredis otherwise.
func newTestRedis(t *testing.T) (*goredis.Client, string) {
	t.Helper()
	prefix := "ragtest:" + uuid.NewString()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb, err := DialRedis(context.Background(), addr)
		if err != nil {
			t.Fatalf("DialRedis: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := rdb.Keys(ctx, prefix+":*").Result()
			if len(keys) > 0 {
				_ = rdb.Del(ctx, keys...).Err()
			}
			_ = rdb.Close()
		})
		return rdb, prefix
	}
	mr := miniredis.RunT(t)
	rdb, err := DialRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("DialRedis(miniredis): %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, prefix
}

func TestRedisManager(t *testing.T) {
	ctx := context.Background()
	rdb, prefix := newTestRedis(t)
	m := NewRedisManager(logger.Nop(), rdb, RedisConfig{KeyPrefix: prefix, TTL: time.Minute, MaxHistory: 2})

	exerciseManager(t, m)

	id, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := m.AddExchange(ctx, id, "q", "a"); err != nil {
		t.Fatalf("AddExchange: %v", err)
	}
	ttl, err := rdb.TTL(ctx, m.listKey(id)).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl: want (0,1m] got=%v", ttl)
	}
}

func TestRedisSessionIDsCannotReachCounter(t *testing.T) {
	ctx := context.Background()
	rdb, prefix := newTestRedis(t)
	m := NewRedisManager(logger.Nop(), rdb, RedisConfig{KeyPrefix: prefix, MaxHistory: 2})

	first, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, id := range []string{"seq", "../seq", ":seq", "list:seq", first} {
		if err := m.AddExchange(ctx, id, "q", "a"); err != nil {
			t.Fatalf("AddExchange(%q): %v", id, err)
		}
	}

	next, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession after client-chosen ids: %v", err)
	}
	if next == first {
		t.Fatalf("session ids must keep advancing: %s", next)
	}
	if h, _ := m.ConversationHistory(ctx, "seq"); h != "User: q\nAssistant: a" {
		t.Fatalf("history for id seq: got=%q", h)
	}
}

func TestRedisSessionsLeaveNoUnboundedKeys(t *testing.T) {
	ctx := context.Background()
	rdb, prefix := newTestRedis(t)
	m := NewRedisManager(logger.Nop(), rdb, RedisConfig{KeyPrefix: prefix, TTL: time.Minute, MaxHistory: 2})

	for i := 0; i < 3; i++ {
		id, err := m.CreateSession(ctx)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if err := m.AddExchange(ctx, id, "q", "a"); err != nil {
			t.Fatalf("AddExchange: %v", err)
		}
	}
	keys, err := rdb.Keys(ctx, prefix+":*").Result()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	for _, k := range keys {
		if k == m.seqKey() {
			continue
		}
		ttl, err := rdb.TTL(ctx, k).Result()
		if err != nil {
			t.Fatalf("TTL %s: %v", k, err)
		}
		if ttl <= 0 {
			t.Fatalf("key %s has no expiry (ttl=%v)", k, ttl)
		}
	}
	if len(keys) != 4 {
		t.Fatalf("keys: want 3 lists + counter got=%v", keys)
	}
}

func TestDialRedisRequiresAddr(t *testing.T) {
	if _, err := DialRedis(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
