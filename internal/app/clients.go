package app

import (
	"fmt"

	"github.com/yungbote/course-rag-backend/internal/embedding"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/platform/openai"
)

type Clients struct {
	Embedder  embedding.Embedder
	Anthropic *anthropic.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	emb, err := embedding.New(log, embedding.Config{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDim,
		OpenAI:    openai.ConfigFromEnv(cfg.EmbeddingModel),
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init embedder: %w", err)
	}
	if cfg.AnthropicAPIKey == "" {
		log.Warn("ANTHROPIC_API_KEY not set; queries will fail until it is configured")
	}
	return Clients{
		Embedder:  emb,
		Anthropic: anthropic.New(log, anthropic.Config{
			APIKey:     cfg.AnthropicAPIKey,
			BaseURL:    cfg.AnthropicBaseURL,
			Timeout:    cfg.AnthropicTimeout(),
			MaxRetries: cfg.AnthropicMaxRetries,
		}),
	}, nil
}
