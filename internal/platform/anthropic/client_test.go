package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, maxRetries int, rt roundTripFunc) *Client {
	t.Helper()
	return &Client{
		log:        logger.Nop(),
		baseURL:    "http://anthropic.local",
		apiKey:     "sk-ant-test",
		httpClient: &http.Client{Transport: rt, Timeout: 5 * time.Second},
		maxRetries: maxRetries,
	}
}

func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestCreateMessageRequestShape(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Fatalf("request: got=%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Fatalf("x-api-key: got=%q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != APIVersion {
			t.Fatalf("anthropic-version: want=%q got=%q", APIVersion, got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rawResponse(200, `{
			"id":"msg_1","role":"assistant","stop_reason":"tool_use",
			"content":[{"type":"text","text":"Let me check."},{"type":"tool_use","id":"tu_1","name":"search_course_content","input":{"query":"rag"}}],
			"usage":{"input_tokens":12,"output_tokens":7}
		}`), nil
	})

	zero := 0.0
	resp, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-test",
		MaxTokens:   800,
		Temperature: &zero,
		System:      "sys",
		Messages:    []Message{{Role: RoleUser, Content: []ContentBlock{TextBlock("hi")}}},
		Tools:       []Tool{{Name: "t", Description: "d", InputSchema: map[string]any{"type": "object"}}},
		ToolChoice:  &ToolChoice{Type: "auto"},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if captured["temperature"] != float64(0) {
		t.Fatalf("temperature 0 must be sent: got=%v", captured["temperature"])
	}
	if captured["max_tokens"] != float64(800) || captured["system"] != "sys" {
		t.Fatalf("request body: got=%v", captured)
	}
	if tc, _ := captured["tool_choice"].(map[string]any); tc["type"] != "auto" {
		t.Fatalf("tool_choice: got=%v", captured["tool_choice"])
	}

	if resp.StopReason != StopToolUse || resp.FirstText() != "Let me check." {
		t.Fatalf("response: got=%+v", resp)
	}
	if resp.Usage.InputTokens != 12 {
		t.Fatalf("usage: got=%+v", resp.Usage)
	}
	input, err := resp.Content[1].InputMap()
	if err != nil || input["query"] != "rag" {
		t.Fatalf("InputMap: got=%v err=%v", input, err)
	}
}

func TestToolUseBlockReplaysInput(t *testing.T) {
	block := ContentBlock{Type: BlockToolUse, ID: "tu_1", Name: "x", Input: json.RawMessage(`{"a":1}`)}
	raw, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"input":{"a":1}`)) {
		t.Fatalf("input not replayed: %s", raw)
	}
	result, _ := json.Marshal(ToolResultBlock("tu_1", "boom", true))
	if !bytes.Contains(result, []byte(`"is_error":true`)) || !bytes.Contains(result, []byte(`"tool_use_id":"tu_1"`)) {
		t.Fatalf("tool_result: %s", result)
	}
}

func TestCreateMessageRetriesOnOverload(t *testing.T) {
	calls := 0
	c := newTestClient(t, 2, func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return rawResponse(529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`), nil
		}
		return rawResponse(200, `{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`), nil
	})
	resp, err := c.CreateMessage(context.Background(), MessageRequest{Model: "m", MaxTokens: 10})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if calls != 2 || resp.FirstText() != "ok" {
		t.Fatalf("calls=%d text=%q", calls, resp.FirstText())
	}
}

func TestCreateMessageClientErrorNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, 3, func(r *http.Request) (*http.Response, error) {
		calls++
		return rawResponse(400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`), nil
	})
	_, err := c.CreateMessage(context.Background(), MessageRequest{Model: "m", MaxTokens: 10})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("want HTTPError got=%v", err)
	}
	if httpErr.StatusCode != 400 || httpErr.Type != "invalid_request_error" || httpErr.Message != "bad" {
		t.Fatalf("HTTPError: got=%+v", httpErr)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestCreateMessageMissingKey(t *testing.T) {
	c := New(logger.Nop(), Config{})
	if _, err := c.CreateMessage(context.Background(), MessageRequest{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("want ErrMissingAPIKey got=%v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Fatalf("baseURL: want=%q got=%q", DefaultBaseURL, c.baseURL)
	}
}
