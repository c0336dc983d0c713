package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"anthropic_api_key", "sk-ant-123", "path", "/api/query"})
	if len(out) != 4 {
		t.Fatalf("len: want=4 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api key: want=%q got=%v", "[REDACTED]", out[1])
	}
	if out[3] != "/api/query" {
		t.Fatalf("path: want=%q got=%v", "/api/query", out[3])
	}
}

func TestSanitizeKVsHashesSessionIDs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"session_id", "session_1"})
	got, ok := out[1].(string)
	if !ok || !strings.HasPrefix(got, "hash:") {
		t.Fatalf("session id: want hash prefix got=%v", out[1])
	}
	again := sanitizeKVs([]interface{}{"session_id", "session_1"})
	if again[1] != got {
		t.Fatalf("hash not stable: first=%v second=%v", got, again[1])
	}
}

func TestSanitizeKVsKeepsDanglingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("dangling key: got=%v", out)
	}
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	log.With("service", "test").Info("ignored", "k", "v")
	log.Sync()
}
