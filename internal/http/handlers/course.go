package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/course-rag-backend/internal/http/response"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/rag"
)

type CourseService interface {
	CourseAnalytics(ctx context.Context) (rag.CourseAnalytics, error)
}

type CourseHandler struct {
	log     *logger.Logger
	courses CourseService
}

func NewCourseHandler(log *logger.Logger, courses CourseService) *CourseHandler {
	return &CourseHandler{
		log:     log.With("handler", "CourseHandler"),
		courses: courses,
	}
}

func (h *CourseHandler) Stats(c *gin.Context) {
	stats, err := h.courses.CourseAnalytics(c.Request.Context())
	if err != nil {
		h.log.Error("CourseAnalytics failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if stats.CourseTitles == nil {
		stats.CourseTitles = []string{}
	}
	response.RespondOK(c, stats)
}
