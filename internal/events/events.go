package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"BankAgent/pkg/logger"
)

// TransferEvent 描述一次已经完成的转账。
type TransferEvent struct {
	ID          string          `json:"id"`
	From        string          `json:"from_account_id"`
	To          string          `json:"to_account_id"`
	Amount      decimal.Decimal `json:"amount"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Publisher 负责把转账事件投递给下游。
type Publisher interface {
	Publish(ctx context.Context, event TransferEvent) error
	Close() error
}

// LogPublisher 将事件写入审计日志，是未配置消息队列时的默认实现。
type LogPublisher struct{}

// Publish 实现 Publisher 接口。
func (LogPublisher) Publish(_ context.Context, event TransferEvent) error {
	logger.Audit().Info("转账事件",
		slog.String("event_id", event.ID),
		slog.String("from", event.From),
		slog.String("to", event.To),
		slog.String("amount", event.Amount.String()),
		slog.String("from_balance", event.FromBalance.String()),
		slog.String("to_balance", event.ToBalance.String()),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// Close 对日志发布器无需操作。
func (LogPublisher) Close() error { return nil }

var _ Publisher = LogPublisher{}
