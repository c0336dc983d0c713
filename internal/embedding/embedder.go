package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
	"github.com/yungbote/course-rag-backend/internal/platform/openai"
)

// Embedder turns text into fixed-width vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider  string
	Model     string
	Dimension int
	OpenAI    openai.Config
}

func New(log *logger.Logger, cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderHash:
		return NewHashEmbedder(cfg.Model, cfg.Dimension), nil
	case ProviderOpenAI:
		oc := cfg.OpenAI
		if strings.TrimSpace(oc.EmbedModel) == "" {
			oc.EmbedModel = cfg.Model
		}
		client, err := openai.NewClient(log, oc)
		if err != nil {
			return nil, fmt.Errorf("init openai embedder: %w", err)
		}
		return NewOpenAIEmbedder(client, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the widths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type openAIEmbedder struct {
	client openai.Client
	dim    int
}

func NewOpenAIEmbedder(client openai.Client, dim int) Embedder {
	return &openAIEmbedder{client: client, dim: dim}
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if e.dim > 0 {
		for i, v := range vecs {
			if len(v) != e.dim {
				return nil, fmt.Errorf("embedding %d dimension mismatch: expected=%d got=%d", i, e.dim, len(v))
			}
		}
	}
	return vecs, nil
}

func (e *openAIEmbedder) Dimension() int { return e.dim }
func (e *openAIEmbedder) Model() string  { return e.client.EmbedModel() }
