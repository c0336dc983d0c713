package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/course-rag-backend/internal/pkg/httpx"
	"github.com/yungbote/course-rag-backend/internal/platform/ctxutil"
	"github.com/yungbote/course-rag-backend/internal/platform/envutil"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

// Client is the subset of the OpenAI REST API used for retrieval.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedModel() string
}

type Config struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	Timeout    time.Duration
	MaxRetries int
}

// ConfigFromEnv reads OPENAI_* variables; embedModel is used when
// OPENAI_EMBED_MODEL is unset.
func ConfigFromEnv(embedModel string) Config {
	return Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		EmbedModel: envutil.String("OPENAI_EMBED_MODEL", embedModel),
		Timeout:    envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 60*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 4),
	}
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	embed := strings.TrimSpace(cfg.EmbedModel)
	if embed == "" {
		embed = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		embedModel: embed,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}, nil
}

func (c *client) EmbedModel() string { return c.embedModel }

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one vector per input, ordered by the response index.
// A response with missing indices is refetched once.
func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}
	req := embeddingsRequest{Model: c.embedModel, Input: clean}

	for attempt := 0; attempt < 2; attempt++ {
		var resp embeddingsResponse
		if err := c.do(ctx, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
			return nil, err
		}
		out := orderEmbeddings(resp, len(clean))
		if !hasMissingEmbeddings(out) {
			return out, nil
		}
		c.log.Warn("Embeddings response missing indices",
			"requested", len(clean),
			"returned", len(resp.Data),
			"model", c.embedModel,
			"attempt", attempt+1,
		)
	}
	return nil, fmt.Errorf("openai embeddings missing indices after retry: requested=%d model=%s", len(clean), c.embedModel)
}

func orderEmbeddings(resp embeddingsResponse, n int) [][]float32 {
	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < n {
			out[d.Index] = toFloat32(d.Embedding)
		}
	}
	if hasMissingEmbeddings(out) && len(resp.Data) == n {
		for i := range out {
			if out[i] == nil {
				out[i] = toFloat32(resp.Data[i].Embedding)
			}
		}
	}
	return out
}

func toFloat32(in []float64) []float32 {
	vec := make([]float32, len(in))
	for i, f := range in {
		vec[i] = float32(f)
	}
	return vec
}

func hasMissingEmbeddings(v [][]float32) bool {
	for i := range v {
		if len(v[i]) == 0 {
			return true
		}
	}
	return false
}
