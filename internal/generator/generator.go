package generator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/anthropic"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	maxTokens            = 800
	DefaultMaxToolRounds = 2
)

type MessageCreator interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, input map[string]any) (string, error)
}

type Request struct {
	Query    string
	History  string
	Tools    []anthropic.Tool
	Executor ToolExecutor
}

type Generator struct {
	client        MessageCreator
	model         string
	maxToolRounds int
	log           *logger.Logger
	metrics       *observability.Metrics
}

func New(log *logger.Logger, client MessageCreator, model string, maxToolRounds int) *Generator {
	if maxToolRounds < 1 {
		maxToolRounds = DefaultMaxToolRounds
	}
	return &Generator{
		client:        client,
		model:         model,
		maxToolRounds: maxToolRounds,
		log:           log.With("service", "Generator"),
	}
}

func (g *Generator) WithMetrics(m *observability.Metrics) *Generator {
	g.metrics = m
	return g
}

func (g *Generator) Model() string { return g.model }

// GenerateResponse runs the first call and, while the model asks for tools,
// up to maxToolRounds rounds of tool execution.
func (g *Generator) GenerateResponse(ctx context.Context, req Request) (answer string, err error) {
	ctx, end := observability.StartSpan(ctx, "generator.GenerateResponse",
		attribute.String("model", g.model),
		attribute.Int("tools", len(req.Tools)),
		attribute.Bool("history", req.History != ""),
	)
	defer func() { end(&err) }()

	base := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperatureZero(),
		System:      buildSystem(req.History),
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.ContentBlock{anthropic.TextBlock(req.Query)}},
		},
	}

	first := base
	withTools(&first, req.Tools)
	resp, err := g.call(ctx, first)
	if err != nil {
		return "", err
	}
	if resp.StopReason != anthropic.StopToolUse || req.Executor == nil {
		return resp.FirstText(), nil
	}
	return g.runTools(ctx, base, resp, req)
}

func (g *Generator) runTools(ctx context.Context, base anthropic.MessageRequest, resp *anthropic.MessageResponse, req Request) (string, error) {
	messages := append([]anthropic.Message(nil), base.Messages...)
	for round := 1; round <= g.maxToolRounds; round++ {
		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})

		results, failed := g.executeBlocks(ctx, round, resp.Content, req.Executor)
		if len(results) > 0 {
			messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: results})
		}

		next := base
		next.Messages = append([]anthropic.Message(nil), messages...)
		if round < g.maxToolRounds && !failed {
			withTools(&next, req.Tools)
		}

		var err error
		resp, err = g.call(ctx, next)
		if err != nil {
			return "", fmt.Errorf("tool round %d: %w", round, err)
		}
		if resp.StopReason != anthropic.StopToolUse {
			break
		}
	}
	return resp.FirstText(), nil
}

func (g *Generator) executeBlocks(ctx context.Context, round int, blocks []anthropic.ContentBlock, exec ToolExecutor) ([]anthropic.ContentBlock, bool) {
	var (
		results []anthropic.ContentBlock
		failed  bool
	)
	for _, b := range blocks {
		if b.Type != anthropic.BlockToolUse {
			continue
		}
		out, err := g.executeOne(ctx, b, exec)
		if err != nil {
			failed = true
			g.log.Warn("tool execution failed", "round", round, "tool", b.Name, "error", err)
			results = append(results, anthropic.ToolResultBlock(b.ID, fmt.Sprintf("Tool execution error: %v", err), true))
			continue
		}
		results = append(results, anthropic.ToolResultBlock(b.ID, out, false))
	}
	return results, failed
}

func (g *Generator) executeOne(ctx context.Context, b anthropic.ContentBlock, exec ToolExecutor) (string, error) {
	input, err := b.InputMap()
	if err != nil {
		return "", err
	}
	return exec.ExecuteTool(ctx, b.Name, input)
}

func (g *Generator) call(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	start := time.Now()
	resp, err := g.client.CreateMessage(ctx, req)
	if err != nil {
		g.metrics.ObserveLLMRequest(g.model, "error", time.Since(start), 0, 0)
		return nil, fmt.Errorf("create message: %w", err)
	}
	g.metrics.ObserveLLMRequest(g.model, "ok", time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	g.log.Debug("model call finished",
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"tools_offered", len(req.Tools),
	)
	return resp, nil
}

func withTools(req *anthropic.MessageRequest, tools []anthropic.Tool) {
	if len(tools) == 0 {
		return
	}
	req.Tools = tools
	req.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
}

func temperatureZero() *float64 {
	t := 0.0
	return &t
}
