package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/generator"
	httpserver "github.com/yungbote/course-rag-backend/internal/http"
	httpH "github.com/yungbote/course-rag-backend/internal/http/handlers"
	"github.com/yungbote/course-rag-backend/internal/ingestion/document"
	"github.com/yungbote/course-rag-backend/internal/ingestion/watch"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/rag"
	"github.com/yungbote/course-rag-backend/internal/session"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Store    *vectorstore.Store
	Sessions session.Manager
	RAG      *rag.System
	Router   *gin.Engine
	Server   *httpserver.Server

	redis        *goredis.Client
	watcher      *watch.Watcher
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the app from LOG_MODE, RAG_CONFIG_FILE and the environment.
func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, err
	}

	a, err := NewWithConfig(context.Background(), log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

var initOTel = observability.InitOTel

// NewWithConfig wires every component from an already validated cfg.
func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (a *App, err error) {
	otelShutdown := initOTel(ctx, log, observability.OtelConfig{
		ServiceName: observability.DefaultServiceName,
		Environment: cfg.LogMode,
	})
	defer func() {
		if err != nil && otelShutdown != nil {
			_ = otelShutdown(context.Background())
		}
	}()

	var metrics *observability.Metrics
	if observability.Enabled() {
		metrics = observability.NewMetrics()
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := resolveVectorBackend(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewStore(ctx, log, backend, clients.Embedder, cfg.MaxResults)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	store.WithMetrics(metrics)

	sessions, rdb, err := resolveSessionManager(ctx, log, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gen := generator.New(log, clients.Anthropic, cfg.AnthropicModel, cfg.MaxToolRounds).WithMetrics(metrics)
	processor := document.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap)
	system := rag.NewSystem(log, processor, store, gen, sessions).WithMetrics(metrics)

	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    observability.DefaultServiceName,
		HealthHandler:  httpH.NewHealthHandler(),
		QueryHandler:   httpH.NewQueryHandler(log, system),
		CourseHandler:  httpH.NewCourseHandler(log, system),
		SessionHandler: httpH.NewSessionHandler(log, system),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Store:        store,
		Sessions:     sessions,
		RAG:          system,
		Router:       server.Engine,
		Server:       server,
		redis:        rdb,
		otelShutdown: otelShutdown,
	}, nil
}

// Start loads DOCS_PATH and, when enabled, watches it. A missing docs folder
// is logged, not fatal.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Metrics != nil && a.redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.redis, 15*time.Second)
	}

	courses, chunks, err := a.RAG.AddCourseFolder(ctx, a.Cfg.DocsPath, false)
	if err != nil {
		a.Log.Warn("Could not load course documents", "docs_path", a.Cfg.DocsPath, "error", err)
	} else {
		a.Log.Info("Loaded course documents", "docs_path", a.Cfg.DocsPath, "courses", courses, "chunks", chunks)
	}

	if !a.Cfg.DocsWatch {
		return
	}
	w, err := watch.New(a.Log, a.Cfg.DocsPath, func(ctx context.Context, path string) error {
		_, err := a.RAG.AddNewCourseDocument(ctx, path)
		return err
	}, watch.WithFilter(rag.IsCourseFile))
	if err != nil {
		a.Log.Warn("Could not create docs watcher", "error", err)
		return
	}
	if err := w.Start(ctx); err != nil {
		a.Log.Warn("Could not watch docs folder", "docs_path", a.Cfg.DocsPath, "error", err)
		w.Stop()
		return
	}
	a.watcher = w
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("Vector store close failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
