package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const appCourse = `Course Title: Building Retrieval Systems
Course Link: https://example.com/rag
Course Instructor: Grace

Lesson 0: Overview
Lesson Link: https://example.com/rag/0
Retrieval systems pair a search index with a language model.

Lesson 1: Chunking
Documents are split into overlapping chunks before embedding.
`

func newTestApp(t *testing.T, docs string) *App {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("OTEL_ENABLED", "false")

	cfg := DefaultConfig()
	cfg.DocsPath = docs
	a, err := NewWithConfig(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestAppStartLoadsDocs(t *testing.T) {
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "rag.txt"), []byte(appCourse), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(docs, "notes.pdf"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := newTestApp(t, docs)
	a.Start(context.Background())

	stats, err := a.RAG.CourseAnalytics(context.Background())
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}
	if stats.TotalCourses != 1 || stats.CourseTitles[0] != "Building Retrieval Systems" {
		t.Fatalf("analytics: got=%+v", stats)
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var body struct {
		TotalCourses int      `json:"total_courses"`
		CourseTitles []string `json:"course_titles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCourses != 1 {
		t.Fatalf("total_courses: want=1 got=%d", body.TotalCourses)
	}

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: want=200 got=%d", rec.Code)
	}
}

func TestAppStartMissingDocsIsNotFatal(t *testing.T) {
	a := newTestApp(t, filepath.Join(t.TempDir(), "missing"))
	a.Start(context.Background())

	stats, err := a.RAG.CourseAnalytics(context.Background())
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}
	if stats.TotalCourses != 0 {
		t.Fatalf("total: want=0 got=%d", stats.TotalCourses)
	}
}

func TestNewWithConfigBadProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VectorProvider = "chroma"
	if _, err := NewWithConfig(context.Background(), logger.Nop(), cfg); err == nil {
		t.Fatalf("expected bootstrap error")
	}
}

func TestNewWithConfigShutsDownOTelOnFailure(t *testing.T) {
	origOTel, origDial := initOTel, dialRedis
	t.Cleanup(func() { initOTel, dialRedis = origOTel, origDial })

	var shutdowns int
	initOTel = func(context.Context, *logger.Logger, observability.OtelConfig) func(context.Context) error {
		return func(context.Context) error {
			shutdowns++
			return nil
		}
	}
	dialRedis = func(context.Context, string) (*goredis.Client, error) {
		return nil, errors.New("connection refused")
	}

	badVector := DefaultConfig()
	badVector.VectorProvider = "chroma"
	badSessions := DefaultConfig()
	badSessions.SessionStore = SessionStoreRedis
	badEmbedder := DefaultConfig()
	badEmbedder.EmbeddingProvider = "local"

	for i, cfg := range []Config{badVector, badSessions, badEmbedder} {
		if _, err := NewWithConfig(context.Background(), logger.Nop(), cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
		if shutdowns != i+1 {
			t.Fatalf("case %d: otel shutdown calls want=%d got=%d", i, i+1, shutdowns)
		}
	}

	a, err := NewWithConfig(context.Background(), logger.Nop(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	if shutdowns != 3 {
		t.Fatalf("success path must keep otel running: shutdowns=%d", shutdowns)
	}
	a.Close()
	if shutdowns != 4 {
		t.Fatalf("Close should shut otel down: shutdowns=%d", shutdowns)
	}
}
