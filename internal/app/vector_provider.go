package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/course-rag-backend/internal/data/db"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/platform/qdrant"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

var (
	newQdrantVectorStore = qdrant.NewVectorStore
	newSQLiteService     = db.NewSQLiteService
	newPostgresService   = db.NewPostgresService
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorMigrateFailed       VectorProviderBootstrapErrorCode = "migrate_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorBackend opens the backend named by cfg.VectorProvider.
func resolveVectorBackend(ctx context.Context, log *logger.Logger, cfg Config) (vectorstore.Backend, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))
	log.Info("Selecting vector store provider", "provider", provider)

	switch provider {
	case VectorProviderMemory:
		return vectorstore.NewMemoryBackend(), nil

	case VectorProviderSQLite, VectorProviderPostgres:
		var (
			svc *db.Service
			err error
		)
		if provider == VectorProviderSQLite {
			svc, err = newSQLiteService(log, cfg.SQLitePath)
		} else {
			svc, err = newPostgresService(log, db.PostgresConfig{
				Host:     cfg.PostgresHost,
				Port:     cfg.PostgresPort,
				User:     cfg.PostgresUser,
				Password: cfg.PostgresPassword,
				Name:     cfg.PostgresName,
			})
		}
		if err != nil {
			return nil, bootstrapFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		if err := db.AutoMigrateAll(svc.DB()); err != nil {
			_ = svc.Close()
			return nil, bootstrapFailed(log, provider, &VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorMigrateFailed,
				Provider: provider,
				Cause:    err,
			})
		}
		return vectorstore.NewGormBackend(svc.DB(), log, svc.Close), nil

	case VectorProviderQdrant:
		log.Info(
			"Bootstrapping qdrant",
			"qdrant_url", cfg.QdrantURL,
			"qdrant_collection", cfg.QdrantCollection,
			"qdrant_namespace_prefix", cfg.QdrantNamespacePrefix,
			"qdrant_vector_dim", cfg.EmbeddingDim,
		)
		vs, err := newQdrantVectorStore(ctx, log, qdrant.Config{
			URL:             strings.TrimSpace(cfg.QdrantURL),
			Collection:      strings.TrimSpace(cfg.QdrantCollection),
			NamespacePrefix: strings.TrimSpace(cfg.QdrantNamespacePrefix),
			VectorDim:       cfg.EmbeddingDim,
			CreateIfMissing: true,
		})
		if err != nil {
			return nil, bootstrapFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		return vectorstore.NewQdrantBackend(vs), nil

	default:
		return nil, bootstrapFailed(log, provider, &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		})
	}
}

func bootstrapFailed(log *logger.Logger, provider string, err error) error {
	log.Error(
		"Vector store provider bootstrap failed",
		"provider", provider,
		"error_code", vectorProviderBootstrapErrorCode(err),
		"error", err,
	)
	return err
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		}
	}

	var opErr *qdrant.OperationError
	if errors.As(err, &opErr) && (opErr.Code == qdrant.OperationErrorTransportFailed || opErr.Code == qdrant.OperationErrorTimeout) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "failed to connect") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootErr *VectorProviderBootstrapError
	if errors.As(err, &bootErr) {
		return bootErr.Code
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
