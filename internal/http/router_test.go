package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	httpH "github.com/yungbote/course-rag-backend/internal/http/handlers"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/rag"
)

type fakeRAG struct {
	answer     string
	sources    []course.Source
	queryErr   error
	statsErr   error
	titles     []string
	nextID     string
	lastQuery  string
	lastSessID string
	cleared    []string
}

func (f *fakeRAG) Query(_ context.Context, q, sid string) (string, []course.Source, error) {
	f.lastQuery, f.lastSessID = q, sid
	return f.answer, f.sources, f.queryErr
}

func (f *fakeRAG) CreateSession(context.Context) (string, error) { return f.nextID, nil }

func (f *fakeRAG) CourseAnalytics(context.Context) (rag.CourseAnalytics, error) {
	if f.statsErr != nil {
		return rag.CourseAnalytics{}, f.statsErr
	}
	return rag.CourseAnalytics{TotalCourses: len(f.titles), CourseTitles: f.titles}, nil
}

func (f *fakeRAG) ClearSession(_ context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

func newTestRouter(f *fakeRAG, m *observability.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	return NewRouter(RouterConfig{
		Log:            log,
		Metrics:        m,
		HealthHandler:  httpH.NewHealthHandler(),
		QueryHandler:   httpH.NewQueryHandler(log, f),
		CourseHandler:  httpH.NewCourseHandler(log, f),
		SessionHandler: httpH.NewSessionHandler(log, f),
	})
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestQueryCreatesSession(t *testing.T) {
	url := "https://example.com/python/1"
	f := &fakeRAG{
		answer:  "Variables hold values.",
		sources: []course.Source{{Title: "Python - Lesson 1", URL: &url}, {Title: "Python"}},
		nextID:  "session_1",
	}
	r := newTestRouter(f, nil)

	rec, body := do(t, r, stdhttp.MethodPost, "/api/query", `{"query":"What is a variable?"}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	want := map[string]any{
		"answer": "Variables hold values.",
		"sources": []any{
			map[string]any{"title": "Python - Lesson 1", "url": url},
			map[string]any{"title": "Python", "url": nil},
		},
		"session_id": "session_1",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("body (-want +got):\n%s", diff)
	}
	if f.lastQuery != "What is a variable?" || f.lastSessID != "session_1" {
		t.Fatalf("service call: query=%q session=%q", f.lastQuery, f.lastSessID)
	}
}

func TestQueryKeepsSessionAndEmptySources(t *testing.T) {
	f := &fakeRAG{answer: "hi", nextID: "unused"}
	r := newTestRouter(f, nil)

	rec, body := do(t, r, stdhttp.MethodPost, "/api/query", `{"query":"","session_id":"session_7"}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if body["session_id"] != "session_7" {
		t.Fatalf("session_id: got=%v", body["session_id"])
	}
	if src, ok := body["sources"].([]any); !ok || len(src) != 0 {
		t.Fatalf("sources: want [] got=%#v", body["sources"])
	}
}

func TestQueryValidation(t *testing.T) {
	r := newTestRouter(&fakeRAG{}, nil)
	for _, payload := range []string{`{}`, `{"query":`, `{"query": 5}`} {
		rec, body := do(t, r, stdhttp.MethodPost, "/api/query", payload)
		if rec.Code != stdhttp.StatusUnprocessableEntity {
			t.Fatalf("%s: status want=422 got=%d", payload, rec.Code)
		}
		if _, ok := body["detail"].(string); !ok {
			t.Fatalf("%s: missing detail: %v", payload, body)
		}
	}
}

func TestQueryError(t *testing.T) {
	r := newTestRouter(&fakeRAG{queryErr: errors.New("model unavailable"), nextID: "session_1"}, nil)
	rec, body := do(t, r, stdhttp.MethodPost, "/api/query", `{"query":"x"}`)
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	if !strings.Contains(body["detail"].(string), "model unavailable") {
		t.Fatalf("detail: got=%v", body["detail"])
	}
}

func TestCourses(t *testing.T) {
	r := newTestRouter(&fakeRAG{titles: []string{"A", "B"}}, nil)
	rec, body := do(t, r, stdhttp.MethodGet, "/api/courses", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	want := map[string]any{"total_courses": float64(2), "course_titles": []any{"A", "B"}}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("body (-want +got):\n%s", diff)
	}

	r = newTestRouter(&fakeRAG{}, nil)
	_, body = do(t, r, stdhttp.MethodGet, "/api/courses", "")
	if titles, ok := body["course_titles"].([]any); !ok || len(titles) != 0 {
		t.Fatalf("empty titles: got=%#v", body["course_titles"])
	}

	r = newTestRouter(&fakeRAG{statsErr: errors.New("db gone")}, nil)
	rec, body = do(t, r, stdhttp.MethodGet, "/api/courses", "")
	if rec.Code != stdhttp.StatusInternalServerError || body["detail"] == nil {
		t.Fatalf("error: status=%d body=%v", rec.Code, body)
	}
}

func TestClearSession(t *testing.T) {
	f := &fakeRAG{}
	r := newTestRouter(f, nil)
	rec, body := do(t, r, stdhttp.MethodDelete, "/api/sessions/session_3", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if body["status"] != "cleared" || body["session_id"] != "session_3" {
		t.Fatalf("body: got=%v", body)
	}
	if len(f.cleared) != 1 || f.cleared[0] != "session_3" {
		t.Fatalf("cleared: got=%v", f.cleared)
	}
}

func TestRootHealthAndMetrics(t *testing.T) {
	m := observability.NewMetrics()
	r := newTestRouter(&fakeRAG{}, m)

	rec, body := do(t, r, stdhttp.MethodGet, "/", "")
	if rec.Code != stdhttp.StatusOK || body["message"] != "Course Materials RAG System" {
		t.Fatalf("root: status=%d body=%v", rec.Code, body)
	}

	rec, _ = do(t, r, stdhttp.MethodGet, "/healthcheck", "")
	if rec.Code != stdhttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: status=%d body=%q", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, r, stdhttp.MethodGet, "/metrics", "")
	if rec.Code != stdhttp.StatusOK || !strings.Contains(rec.Body.String(), `route="/healthcheck"`) {
		t.Fatalf("metrics: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	r := newTestRouter(&fakeRAG{}, nil)
	rec, _ := do(t, r, stdhttp.MethodGet, "/metrics", "")
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status: want=404 got=%d", rec.Code)
	}
}
