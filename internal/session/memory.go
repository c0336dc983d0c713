package session

import (
	"context"
	"sync"
)

type MemoryManager struct {
	mu         sync.Mutex
	maxHistory int
	counter    int64
	sessions   map[string][]Message
}

func NewMemoryManager(maxHistory int) *MemoryManager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MemoryManager{maxHistory: maxHistory, sessions: map[string][]Message{}}
}

func (m *MemoryManager) CreateSession(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	id := sessionName(m.counter)
	m.sessions[id] = []Message{}
	return id, nil
}

func (m *MemoryManager) AddMessage(_ context.Context, sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append(m.sessions[sessionID], Message{Role: role, Content: content})
	if limit := 2 * m.maxHistory; len(msgs) > limit {
		msgs = append([]Message(nil), msgs[len(msgs)-limit:]...)
	}
	m.sessions[sessionID] = msgs
	return nil
}

func (m *MemoryManager) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error {
	return addExchange(ctx, m, sessionID, userMessage, assistantMessage)
}

func (m *MemoryManager) ConversationHistory(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	msgs, err := m.Messages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return formatHistory(msgs), nil
}

func (m *MemoryManager) Messages(_ context.Context, sessionID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryManager) ClearSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		m.sessions[sessionID] = []Message{}
	}
	return nil
}

func (m *MemoryManager) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
