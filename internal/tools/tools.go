package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

// Tool is something the model can call. Execute returns the text handed
// back to the model; a non-nil error is reported to the model as a failed
// tool call.
type Tool interface {
	Definition() anthropic.Tool
	Execute(ctx context.Context, input map[string]any) (string, error)
	LastSources() []course.Source
	ResetSources()
}

// Store is the slice of vectorstore.Store the tools read from.
type Store interface {
	Search(ctx context.Context, p vectorstore.SearchParams) vectorstore.SearchResults
	CourseOutline(ctx context.Context, name string) (*vectorstore.CourseOutline, bool)
	CourseLink(ctx context.Context, title string) string
	LessonLink(ctx context.Context, title string, lessonNumber int) string
}

// Manager holds registered tools for one query. It is safe for concurrent
// use but is meant to be created per request so sources never mix.
type Manager struct {
	mu      sync.Mutex
	order   []string
	tools   map[string]Tool
	metrics *observability.Metrics
}

func NewManager(tools ...Tool) *Manager {
	m := &Manager{tools: map[string]Tool{}}
	for _, t := range tools {
		m.Register(t)
	}
	return m
}

func (m *Manager) WithMetrics(metrics *observability.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Register adds or replaces a tool under its definition name.
func (m *Manager) Register(t Tool) {
	name := t.Definition().Name
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools[name]; !exists {
		m.order = append(m.order, name)
	}
	m.tools[name] = t
}

func (m *Manager) Definitions() []anthropic.Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]anthropic.Tool, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tools[name].Definition())
	}
	return out
}

func (m *Manager) ExecuteTool(ctx context.Context, name string, input map[string]any) (string, error) {
	m.mu.Lock()
	t, ok := m.tools[name]
	m.mu.Unlock()
	if !ok {
		m.metrics.IncToolCall(name, "not_found")
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
	out, err := t.Execute(ctx, input)
	if err != nil {
		m.metrics.IncToolCall(name, "error")
		return "", err
	}
	m.metrics.IncToolCall(name, "ok")
	return out, nil
}

// LastSources returns the sources of the first registered tool that has any.
func (m *Manager) LastSources() []course.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		if src := m.tools[name].LastSources(); len(src) > 0 {
			return src
		}
	}
	return []course.Source{}
}

func (m *Manager) ResetSources() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tools {
		t.ResetSources()
	}
}

type sourceTracker struct {
	mu      sync.Mutex
	sources []course.Source
}

func (s *sourceTracker) set(src []course.Source) {
	s.mu.Lock()
	s.sources = src
	s.mu.Unlock()
}

func (s *sourceTracker) LastSources() []course.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]course.Source, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *sourceTracker) ResetSources() { s.set(nil) }
