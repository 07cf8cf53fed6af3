// Package session keeps the per-session chat transcript. Transcripts are
// scoped to a session and never outlive it.
package session

import (
	"context"
	"time"
)

// Message 是会话记录中的一条消息。
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 保存会话记录。
type Store interface {
	// Create 登记一个新会话。
	Create(ctx context.Context, sessionID string) error
	// Exists 判断会话是否存在且未过期。
	Exists(ctx context.Context, sessionID string) (bool, error)
	// Append 追加一条消息。
	Append(ctx context.Context, sessionID string, msg Message) error
	// History 返回最近 limit 条消息，limit <= 0 时返回全部。
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Close() error
}
