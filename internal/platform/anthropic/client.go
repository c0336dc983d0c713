package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/course-rag-backend/internal/pkg/httpx"
	"github.com/yungbote/course-rag-backend/internal/platform/ctxutil"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	APIVersion     = "2023-06-01"
)

var ErrMissingAPIKey = errors.New("missing ANTHROPIC_API_KEY")

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client creates messages against the Anthropic Messages API.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// New does not fail on an empty key; CreateMessage returns ErrMissingAPIKey
// so the service can start without credentials.
func New(log *logger.Logger, cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		log:        log.With("service", "AnthropicClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type HTTPError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic http %d: %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *Client) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, raw, err := c.doOnce(ctx, req)
		if err == nil {
			var out MessageResponse
			if uErr := json.Unmarshal(raw, &out); uErr != nil {
				return nil, fmt.Errorf("anthropic decode error: %w", uErr)
			}
			return &out, nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 30*time.Second))
		c.log.Warn("Anthropic request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("unreachable retry loop")
}

func (c *Client) doOnce(ctx context.Context, body MessageRequest) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)
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
		return resp, raw, decodeHTTPError(resp.StatusCode, raw)
	}
	return resp, raw, nil
}

func decodeHTTPError(status int, raw []byte) *HTTPError {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return &HTTPError{StatusCode: status, Type: envelope.Error.Type, Message: envelope.Error.Message}
	}
	return &HTTPError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
}
