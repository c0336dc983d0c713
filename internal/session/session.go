package session

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultMaxHistory = 2
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Manager keeps short conversation histories. Each session holds at most
// 2*maxHistory messages; older ones are dropped first.
type Manager interface {
	CreateSession(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, sessionID, role, content string) error
	AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error
	ConversationHistory(ctx context.Context, sessionID string) (string, error)
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	ClearSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

func sessionName(n int64) string { return fmt.Sprintf("session_%d", n) }

func formatHistory(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, roleLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + strings.ToLower(role[1:])
}

func addExchange(ctx context.Context, m Manager, id, user, assistant string) error {
	if err := m.AddMessage(ctx, id, RoleUser, user); err != nil {
		return err
	}
	return m.AddMessage(ctx, id, RoleAssistant, assistant)
}
