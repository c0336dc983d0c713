package rag

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	"github.com/yungbote/course-rag-backend/internal/generator"
	"github.com/yungbote/course-rag-backend/internal/ingestion/document"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/session"
	"github.com/yungbote/course-rag-backend/internal/tools"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

const promptPrefix = "Answer this question about course materials: "

type Generator interface {
	GenerateResponse(ctx context.Context, req generator.Request) (string, error)
}

type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// System ties document ingestion, the vector store, the tool-calling
// generator and conversation sessions together.
type System struct {
	log       *logger.Logger
	processor *document.Processor
	store     *vectorstore.Store
	generator Generator
	sessions  session.Manager
	metrics   *observability.Metrics
}

func NewSystem(log *logger.Logger, processor *document.Processor, store *vectorstore.Store, gen Generator, sessions session.Manager) *System {
	return &System{
		log:       log.With("service", "RAGSystem"),
		processor: processor,
		store:     store,
		generator: gen,
		sessions:  sessions,
	}
}

func (s *System) WithMetrics(m *observability.Metrics) *System {
	s.metrics = m
	return s
}

func (s *System) Store() *vectorstore.Store { return s.store }

func (s *System) newToolManager() *tools.Manager {
	return tools.NewManager(
		tools.NewCourseSearchTool(s.store),
		tools.NewCourseOutlineTool(s.store),
	).WithMetrics(s.metrics)
}

func (s *System) ToolDefinitions() []anthropic.Tool {
	return s.newToolManager().Definitions()
}

// Query answers one question. Sources are always non-nil. The exchange is
// recorded only when sessionID is set and generation succeeded.
func (s *System) Query(ctx context.Context, query, sessionID string) (answer string, sources []course.Source, err error) {
	ctx, end := observability.StartSpan(ctx, "rag.Query", attribute.Bool("session", sessionID != ""))
	defer func() { end(&err) }()

	history := ""
	if sessionID != "" {
		history, err = s.sessions.ConversationHistory(ctx, sessionID)
		if err != nil {
			return "", nil, fmt.Errorf("load history: %w", err)
		}
	}

	mgr := s.newToolManager()
	answer, err = s.generator.GenerateResponse(ctx, generator.Request{
		Query:    promptPrefix + query,
		History:  history,
		Tools:    mgr.Definitions(),
		Executor: mgr,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate response: %w", err)
	}

	sources = mgr.LastSources()
	mgr.ResetSources()

	if sessionID != "" {
		if err := s.sessions.AddExchange(ctx, sessionID, query, answer); err != nil {
			s.log.Warn("failed to record exchange", "session_id", sessionID, "error", err)
		}
	}
	return answer, sources, nil
}

func (s *System) CourseAnalytics(ctx context.Context) (CourseAnalytics, error) {
	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return CourseAnalytics{}, fmt.Errorf("course analytics: %w", err)
	}
	if titles == nil {
		titles = []string{}
	}
	return CourseAnalytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}

func (s *System) CreateSession(ctx context.Context) (string, error) {
	return s.sessions.CreateSession(ctx)
}

func (s *System) ClearSession(ctx context.Context, sessionID string) error {
	return s.sessions.ClearSession(ctx, sessionID)
}
