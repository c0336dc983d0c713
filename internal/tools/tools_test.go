package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	"github.com/yungbote/course-rag-backend/internal/observability"
	errs "github.com/yungbote/course-rag-backend/internal/pkg/errors"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

type fakeStore struct {
	results   vectorstore.SearchResults
	lastQuery vectorstore.SearchParams
	outlines  map[string]*vectorstore.CourseOutline
	links     map[string]string
}

func (f *fakeStore) Search(_ context.Context, p vectorstore.SearchParams) vectorstore.SearchResults {
	f.lastQuery = p
	return f.results
}

func (f *fakeStore) CourseOutline(_ context.Context, name string) (*vectorstore.CourseOutline, bool) {
	o, ok := f.outlines[name]
	return o, ok
}

func (f *fakeStore) CourseLink(_ context.Context, title string) string {
	return f.links[title]
}

func (f *fakeStore) LessonLink(_ context.Context, title string, n int) string {
	if n == 1 {
		return f.links[title] + "/lesson-1"
	}
	return ""
}

func hits() vectorstore.SearchResults {
	return vectorstore.SearchResults{
		Documents: []string{"Variables hold values.", "General overview."},
		Metadata: []map[string]any{
			{"course_title": "Test Course", "lesson_number": 1, "chunk_index": 0},
			{"course_title": "Test Course", "chunk_index": 1},
		},
		Distances: []float64{0.1, 0.2},
	}
}

func TestSearchToolFormatsResultsAndSources(t *testing.T) {
	store := &fakeStore{results: hits(), links: map[string]string{"Test Course": "https://example.com/test"}}
	tool := NewCourseSearchTool(store)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "variables"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "[Test Course - Lesson 1]\nVariables hold values.\n\n[Test Course]\nGeneral overview."
	if out != want {
		t.Fatalf("output: want=%q got=%q", want, out)
	}

	lessonURL := "https://example.com/test/lesson-1"
	courseURL := "https://example.com/test"
	wantSources := []course.Source{
		{Title: "Test Course - Lesson 1", URL: &lessonURL},
		{Title: "Test Course", URL: &courseURL},
	}
	if diff := cmp.Diff(wantSources, tool.LastSources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchToolPassesFilters(t *testing.T) {
	store := &fakeStore{results: hits()}
	tool := NewCourseSearchTool(store)

	_, err := tool.Execute(context.Background(), map[string]any{
		"query":         "x",
		"course_name":   "Test",
		"lesson_number": float64(2),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.lastQuery.CourseName != "Test" {
		t.Fatalf("course_name: want=Test got=%q", store.lastQuery.CourseName)
	}
	if store.lastQuery.LessonNumber == nil || *store.lastQuery.LessonNumber != 2 {
		t.Fatalf("lesson_number: want=2 got=%v", store.lastQuery.LessonNumber)
	}
	if store.lastQuery.Limit != nil {
		t.Fatalf("limit: want nil got=%v", *store.lastQuery.Limit)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"query": "x", "lesson_number": "3"}); err != nil {
		t.Fatalf("string lesson: %v", err)
	}
	if *store.lastQuery.LessonNumber != 3 {
		t.Fatalf("string lesson: want=3 got=%d", *store.lastQuery.LessonNumber)
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "x", "lesson_number": 1.5}); err == nil {
		t.Fatalf("expected error for fractional lesson number")
	}
}

func TestSearchToolEmptyAndErrorResults(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{results: hits(), links: map[string]string{}}
	tool := NewCourseSearchTool(store)
	if _, err := tool.Execute(ctx, map[string]any{"query": "x"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	store.results = vectorstore.EmptyResults("")
	out, err := tool.Execute(ctx, map[string]any{"query": "x", "course_name": "Test", "lesson_number": 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "No relevant content found in course 'Test' in lesson 2."; out != want {
		t.Fatalf("empty: want=%q got=%q", want, out)
	}
	if got := tool.LastSources(); len(got) != 0 {
		t.Fatalf("sources after empty: want none got=%v", got)
	}

	store.results = vectorstore.EmptyResults("No course found matching 'Nope'")
	out, _ = tool.Execute(ctx, map[string]any{"query": "x", "course_name": "Nope"})
	if !strings.Contains(out, "No course found matching") {
		t.Fatalf("error passthrough: got=%q", out)
	}
}

func TestSearchToolRejectsMissingQuery(t *testing.T) {
	tool := NewCourseSearchTool(&fakeStore{})
	if _, err := tool.Execute(context.Background(), map[string]any{}); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("missing query: want ErrInvalidArgument got=%v", err)
	}
}

func TestToolSchemas(t *testing.T) {
	search := NewCourseSearchTool(&fakeStore{}).Definition()
	if search.Name != SearchToolName {
		t.Fatalf("search name: want=%s got=%s", SearchToolName, search.Name)
	}
	if diff := cmp.Diff([]string{"query"}, search.InputSchema["required"]); diff != "" {
		t.Fatalf("search required (-want +got):\n%s", diff)
	}
	props := search.InputSchema["properties"].(map[string]any)
	for _, key := range []string{"query", "course_name", "lesson_number"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("search schema missing %s", key)
		}
	}

	outline := NewCourseOutlineTool(&fakeStore{}).Definition()
	if outline.Name != OutlineToolName {
		t.Fatalf("outline name: want=%s got=%s", OutlineToolName, outline.Name)
	}
	if diff := cmp.Diff([]string{"course_name"}, outline.InputSchema["required"]); diff != "" {
		t.Fatalf("outline required (-want +got):\n%s", diff)
	}
}

func TestOutlineTool(t *testing.T) {
	store := &fakeStore{outlines: map[string]*vectorstore.CourseOutline{
		"Test": {
			Title:      "Test Course",
			CourseLink: "https://example.com/test",
			Lessons:    []course.Lesson{{Number: 0, Title: "Intro"}, {Number: 1, Title: "Basics"}},
		},
	}}
	tool := NewCourseOutlineTool(store)

	out, err := tool.Execute(context.Background(), map[string]any{"course_name": "Test"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "Course: Test Course\nCourse Link: https://example.com/test\n\nLessons:\nLesson 0: Intro\nLesson 1: Basics"
	if out != want {
		t.Fatalf("outline: want=%q got=%q", want, out)
	}
	src := tool.LastSources()
	if len(src) != 1 || src[0].Title != "Test Course" {
		t.Fatalf("sources: want one for Test Course got=%v", src)
	}

	out, _ = tool.Execute(context.Background(), map[string]any{"course_name": "Missing"})
	if want := "No course found matching 'Missing'"; out != want {
		t.Fatalf("miss: want=%q got=%q", want, out)
	}
	if len(tool.LastSources()) != 0 {
		t.Fatalf("sources should be cleared on miss")
	}
}

type failingTool struct{ *CourseSearchTool }

func (failingTool) Execute(context.Context, map[string]any) (string, error) {
	return "", errors.New("boom")
}

func TestManager(t *testing.T) {
	store := &fakeStore{
		results: hits(),
		links:   map[string]string{"Test Course": "https://example.com/test"},
		outlines: map[string]*vectorstore.CourseOutline{
			"Test": {Title: "Test Course"},
		},
	}
	metrics := observability.NewMetrics()
	m := NewManager(NewCourseSearchTool(store), NewCourseOutlineTool(store)).WithMetrics(metrics)

	defs := m.Definitions()
	if len(defs) != 2 || defs[0].Name != SearchToolName || defs[1].Name != OutlineToolName {
		t.Fatalf("definitions order: got=%v", defs)
	}

	out, err := m.ExecuteTool(context.Background(), "nope", nil)
	if err != nil || !strings.Contains(out, "not found") {
		t.Fatalf("unknown tool: out=%q err=%v", out, err)
	}

	if _, err := m.ExecuteTool(context.Background(), OutlineToolName, map[string]any{"course_name": "Test"}); err != nil {
		t.Fatalf("outline: %v", err)
	}
	if got := m.LastSources(); len(got) != 1 || got[0].Title != "Test Course" {
		t.Fatalf("last sources from outline: got=%v", got)
	}

	if _, err := m.ExecuteTool(context.Background(), SearchToolName, map[string]any{"query": "x"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := m.LastSources(); len(got) != 2 {
		t.Fatalf("search sources take precedence: got=%v", got)
	}

	m.ResetSources()
	if got := m.LastSources(); len(got) != 0 {
		t.Fatalf("after reset: want none got=%v", got)
	}

	var sb strings.Builder
	if err := metrics.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(sb.String(), `rag_tool_calls_total{tool="nope",status="not_found"} 1.000000`) {
		t.Fatalf("tool metrics missing:\n%s", sb.String())
	}
}

func TestManagerToolError(t *testing.T) {
	m := NewManager(failingTool{NewCourseSearchTool(&fakeStore{})})
	if _, err := m.ExecuteTool(context.Background(), SearchToolName, map[string]any{"query": "x"}); err == nil {
		t.Fatalf("expected tool error")
	}
}
