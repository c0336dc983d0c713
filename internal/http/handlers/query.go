package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	"github.com/yungbote/course-rag-backend/internal/http/response"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type QueryService interface {
	Query(ctx context.Context, query, sessionID string) (string, []course.Source, error)
	CreateSession(ctx context.Context) (string, error)
}

type QueryHandler struct {
	log *logger.Logger
	rag QueryService
}

func NewQueryHandler(log *logger.Logger, rag QueryService) *QueryHandler {
	return &QueryHandler{
		log: log.With("handler", "QueryHandler"),
		rag: rag,
	}
}

// Query is a pointer so an explicit empty string passes binding while a
// missing field does not.
type queryRequest struct {
	Query     *string `json:"query" binding:"required"`
	SessionID *string `json:"session_id"`
}

type queryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []course.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	ctx := c.Request.Context()

	sessionID := ""
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}
	if sessionID == "" {
		id, err := h.rag.CreateSession(ctx)
		if err != nil {
			h.log.Error("CreateSession failed", "error", err)
			response.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		sessionID = id
	}
	c.Set("session_id", sessionID)

	answer, sources, err := h.rag.Query(ctx, *req.Query, sessionID)
	if err != nil {
		h.log.Error("Query failed", "error", err, "session_id", sessionID)
		response.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if sources == nil {
		sources = []course.Source{}
	}
	response.RespondOK(c, queryResponse{Answer: answer, Sources: sources, SessionID: sessionID})
}
