package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	errs "github.com/yungbote/course-rag-backend/internal/pkg/errors"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

const SearchToolName = "search_course_content"

type CourseSearchTool struct {
	sourceTracker
	store Store
}

func NewCourseSearchTool(store Store) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

func (t *CourseSearchTool) Definition() anthropic.Tool {
	return anthropic.Tool{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	query, ok := input["query"].(string)
	if !ok {
		return "", fmt.Errorf("%s: query must be a string: %w", SearchToolName, errs.ErrInvalidArgument)
	}
	courseName, _ := input["course_name"].(string)
	lesson, err := optionalInt(input["lesson_number"])
	if err != nil {
		return "", fmt.Errorf("%s: lesson_number: %w: %w", SearchToolName, errs.ErrInvalidArgument, err)
	}

	res := t.store.Search(ctx, vectorstore.SearchParams{
		Query:        query,
		CourseName:   courseName,
		LessonNumber: lesson,
	})
	if res.Error != "" {
		t.set(nil)
		return res.Error, nil
	}
	if res.IsEmpty() {
		t.set(nil)
		msg := "No relevant content found"
		if courseName != "" {
			msg += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lesson != nil {
			msg += fmt.Sprintf(" in lesson %d", *lesson)
		}
		return msg + ".", nil
	}
	return t.format(ctx, res), nil
}

func (t *CourseSearchTool) format(ctx context.Context, res vectorstore.SearchResults) string {
	parts := make([]string, 0, len(res.Documents))
	sources := make([]course.Source, 0, len(res.Documents))
	for i, doc := range res.Documents {
		meta := res.Metadata[i]
		title, _ := meta["course_title"].(string)
		if title == "" {
			title = "unknown"
		}
		header := "[" + title
		label := title
		url := ""
		if n, ok := vectorstore.IntFromMetadata(meta, "lesson_number"); ok {
			header += fmt.Sprintf(" - Lesson %d", n)
			label += fmt.Sprintf(" - Lesson %d", n)
			url = t.store.LessonLink(ctx, title, n)
		} else {
			url = t.store.CourseLink(ctx, title)
		}
		header += "]"
		parts = append(parts, header+"\n"+doc)
		sources = append(sources, course.SourceFor(label, url))
	}
	t.set(sources)
	return strings.Join(parts, "\n\n")
}

// optionalInt accepts any JSON number or a numeric string.
func optionalInt(v any) (*int, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		return &n, nil
	case int64:
		i := int(n)
		return &i, nil
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("not an integer: %v", n)
		}
		i := int(n)
		return &i, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", n)
		}
		return &i, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
