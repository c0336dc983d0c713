package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	errs "github.com/yungbote/course-rag-backend/internal/pkg/errors"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
)

const OutlineToolName = "get_course_outline"

type CourseOutlineTool struct {
	sourceTracker
	store Store
}

func NewCourseOutlineTool(store Store) *CourseOutlineTool {
	return &CourseOutlineTool{store: store}
}

func (t *CourseOutlineTool) Definition() anthropic.Tool {
	return anthropic.Tool{
		Name:        OutlineToolName,
		Description: "Get the complete outline of a course: title, course link and every lesson number with its title",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			"required": []string{"course_name"},
		},
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	name, ok := input["course_name"].(string)
	if !ok {
		return "", fmt.Errorf("%s: course_name must be a string: %w", OutlineToolName, errs.ErrInvalidArgument)
	}
	outline, found := t.store.CourseOutline(ctx, name)
	if !found {
		t.set(nil)
		return fmt.Sprintf("No course found matching '%s'", name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", outline.Title)
	if outline.CourseLink != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", outline.CourseLink)
	}
	if outline.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", outline.Instructor)
	}
	b.WriteString("\nLessons:\n")
	for _, l := range outline.Lessons {
		fmt.Fprintf(&b, "Lesson %d: %s\n", l.Number, l.Title)
	}

	t.set([]course.Source{course.SourceFor(outline.Title, outline.CourseLink)})
	return strings.TrimRight(b.String(), "\n"), nil
}
