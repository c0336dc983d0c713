package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/course-rag-backend/internal/http/response"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type SessionService interface {
	ClearSession(ctx context.Context, sessionID string) error
}

type SessionHandler struct {
	log      *logger.Logger
	sessions SessionService
}

func NewSessionHandler(log *logger.Logger, sessions SessionService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
	}
}

func (h *SessionHandler) Clear(c *gin.Context) {
	id := c.Param("id")
	c.Set("session_id", id)
	if err := h.sessions.ClearSession(c.Request.Context(), id); err != nil {
		h.log.Error("ClearSession failed", "error", err, "session_id", id)
		response.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "cleared", "session_id": id})
}
