package session

import (
	"context"
	"sync"

	xerrors "BankAgent/internal/errors"
)

// MemoryStore 在进程内保存会话记录。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		m.sessions[sessionID] = nil
	}
	return nil
}

// Exists 实现 Store 接口。
func (m *MemoryStore) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok, nil
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, sessionID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", sessionID))
	}
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	return nil
}

// History 实现 Store 接口。
func (m *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages, ok := m.sessions[sessionID]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", sessionID))
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]Message(nil), messages...), nil
}

// Close 实现 Store 接口。
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
