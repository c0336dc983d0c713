package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

type scriptedCreator struct {
	responses []*anthropic.MessageResponse
	err       error
	requests  []anthropic.MessageRequest
}

func (s *scriptedCreator) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.requests) > len(s.responses) {
		return nil, errors.New("unexpected call")
	}
	return s.responses[len(s.requests)-1], nil
}

type recordingExecutor struct {
	calls []string
	fail  map[string]error
}

func (r *recordingExecutor) ExecuteTool(_ context.Context, name string, input map[string]any) (string, error) {
	r.calls = append(r.calls, name)
	if err := r.fail[name]; err != nil {
		return "", err
	}
	q, _ := input["query"].(string)
	return "result for " + q, nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{StopReason: "end_turn", Content: []anthropic.ContentBlock{anthropic.TextBlock(text)}}
}

func toolUseResponse(id, name, query string) *anthropic.MessageResponse {
	input, _ := json.Marshal(map[string]any{"query": query})
	return &anthropic.MessageResponse{
		StopReason: anthropic.StopToolUse,
		Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockToolUse, ID: id, Name: name, Input: input},
		},
	}
}

var testTools = []anthropic.Tool{{Name: "search_course_content", InputSchema: map[string]any{"type": "object"}}}

func TestDirectAnswer(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{textResponse("hello")}}
	g := New(logger.Nop(), creator, "test-model", 2)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "hi", Tools: testTools, Executor: &recordingExecutor{}})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "hello" {
		t.Fatalf("answer: want=hello got=%q", got)
	}
	req := creator.requests[0]
	if req.Model != "test-model" || req.MaxTokens != 800 || req.Temperature == nil || *req.Temperature != 0 {
		t.Fatalf("base params: got model=%s max=%d temp=%v", req.Model, req.MaxTokens, req.Temperature)
	}
	if req.ToolChoice == nil || req.ToolChoice.Type != "auto" || len(req.Tools) != 1 {
		t.Fatalf("tools not offered on first call")
	}
	if req.System != systemPrompt {
		t.Fatalf("system prompt should not carry history")
	}
}

func TestHistoryInSystemPrompt(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{textResponse("ok")}}
	g := New(logger.Nop(), creator, "m", 2)
	if _, err := g.GenerateResponse(context.Background(), Request{Query: "q", History: "User: a\nAssistant: b"}); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if !strings.HasSuffix(creator.requests[0].System, "\n\nPrevious conversation:\nUser: a\nAssistant: b") {
		t.Fatalf("history not appended: %q", creator.requests[0].System)
	}
	if creator.requests[0].Tools != nil || creator.requests[0].ToolChoice != nil {
		t.Fatalf("no tools given, none should be sent")
	}
}

func TestToolUseWithoutExecutorReturnsText(t *testing.T) {
	resp := toolUseResponse("t1", "search_course_content", "x")
	resp.Content = append([]anthropic.ContentBlock{anthropic.TextBlock("thinking")}, resp.Content...)
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{resp}}
	g := New(logger.Nop(), creator, "m", 2)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "q", Tools: testTools})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "thinking" || len(creator.requests) != 1 {
		t.Fatalf("want single call returning text, got=%q calls=%d", got, len(creator.requests))
	}
}

func TestSingleToolRound(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{
		toolUseResponse("t1", "search_course_content", "python"),
		textResponse("final"),
	}}
	exec := &recordingExecutor{}
	g := New(logger.Nop(), creator, "m", 2)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "q", Tools: testTools, Executor: exec})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "final" {
		t.Fatalf("answer: want=final got=%q", got)
	}
	if len(creator.requests) != 2 {
		t.Fatalf("calls: want=2 got=%d", len(creator.requests))
	}
	second := creator.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("messages: want=3 got=%d", len(second.Messages))
	}
	if second.Messages[1].Role != anthropic.RoleAssistant || second.Messages[2].Role != anthropic.RoleUser {
		t.Fatalf("roles: got=%s,%s", second.Messages[1].Role, second.Messages[2].Role)
	}
	res := second.Messages[2].Content[0]
	if res.Type != anthropic.BlockToolResult || res.ToolUseID != "t1" || res.Content != "result for python" || res.IsError {
		t.Fatalf("tool result: got=%+v", res)
	}
	if len(second.Tools) == 0 {
		t.Fatalf("round 1 of 2 should still offer tools")
	}
}

func TestTwoRoundsThenToolsWithdrawn(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{
		toolUseResponse("t1", "search_course_content", "a"),
		toolUseResponse("t2", "search_course_content", "b"),
		textResponse("done"),
	}}
	exec := &recordingExecutor{}
	g := New(logger.Nop(), creator, "m", 2)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "q", Tools: testTools, Executor: exec})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "done" || len(creator.requests) != 3 || len(exec.calls) != 2 {
		t.Fatalf("got=%q calls=%d tools=%d", got, len(creator.requests), len(exec.calls))
	}
	if creator.requests[2].Tools != nil || creator.requests[2].ToolChoice != nil {
		t.Fatalf("last round must not offer tools")
	}
	if n := len(creator.requests[2].Messages); n != 5 {
		t.Fatalf("messages on final call: want=5 got=%d", n)
	}
}

func TestRoundLimitStopsLoop(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{
		toolUseResponse("t1", "search_course_content", "a"),
		toolUseResponse("t2", "search_course_content", "b"),
	}}
	g := New(logger.Nop(), creator, "m", 1)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "q", Tools: testTools, Executor: &recordingExecutor{}})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "" || len(creator.requests) != 2 {
		t.Fatalf("want empty answer after 2 calls, got=%q calls=%d", got, len(creator.requests))
	}
}

func TestToolErrorWithdrawsTools(t *testing.T) {
	creator := &scriptedCreator{responses: []*anthropic.MessageResponse{
		toolUseResponse("t1", "search_course_content", "a"),
		textResponse("sorry"),
	}}
	exec := &recordingExecutor{fail: map[string]error{"search_course_content": errors.New("db down")}}
	g := New(logger.Nop(), creator, "m", 3)

	got, err := g.GenerateResponse(context.Background(), Request{Query: "q", Tools: testTools, Executor: exec})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if got != "sorry" {
		t.Fatalf("answer: want=sorry got=%q", got)
	}
	second := creator.requests[1]
	res := second.Messages[2].Content[0]
	if !res.IsError || res.Content != "Tool execution error: db down" {
		t.Fatalf("error result: got=%+v", res)
	}
	if second.Tools != nil {
		t.Fatalf("tools must be withdrawn after a failed round")
	}
}

func TestAPIErrorIsReturned(t *testing.T) {
	creator := &scriptedCreator{err: anthropic.ErrMissingAPIKey}
	g := New(logger.Nop(), creator, "m", 2)
	_, err := g.GenerateResponse(context.Background(), Request{Query: "q"})
	if !errors.Is(err, anthropic.ErrMissingAPIKey) {
		t.Fatalf("err: want ErrMissingAPIKey got=%v", err)
	}
}
