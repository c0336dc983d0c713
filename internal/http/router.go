package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/course-rag-backend/internal/http/handlers"
	httpMW "github.com/yungbote/course-rag-backend/internal/http/middleware"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	HealthHandler  *httpH.HealthHandler
	QueryHandler   *httpH.QueryHandler
	CourseHandler  *httpH.CourseHandler
	SessionHandler *httpH.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = observability.DefaultServiceName
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.Root)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.QueryHandler != nil {
			api.POST("/query", cfg.QueryHandler.Query)
		}
		if cfg.CourseHandler != nil {
			api.GET("/courses", cfg.CourseHandler.Stats)
		}
		if cfg.SessionHandler != nil {
			api.DELETE("/sessions/:id", cfg.SessionHandler.Clear)
		}
	}

	return r
}
