package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorEnvelope is the body of every non-2xx API response.
type ErrorEnvelope struct {
	Detail string `json:"detail"`
}

func RespondError(c *gin.Context, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Detail: msg})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
