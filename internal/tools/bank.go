package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"BankAgent/internal/events"
	"BankAgent/internal/ledger"
	"BankAgent/internal/observability/metrics"
	"BankAgent/pkg/logger"
)

// 工具名称，与大模型看到的函数名一致。
const (
	NameCheckBalance  = "check_balance"
	NameTransferMoney = "transfer_money"
	NameListAccounts  = "list_accounts"
)

// Bank 把 Ledger 的结果翻译成智能体可以理解的短文本。
type Bank struct {
	ledger    *ledger.Ledger
	publisher events.Publisher
	log       *slog.Logger
}

// BankOption 定义可选配置。
type BankOption func(*Bank)

// WithPublisher 配置转账成功后的事件发布器。
func WithPublisher(publisher events.Publisher) BankOption {
	return func(b *Bank) {
		if publisher != nil {
			b.publisher = publisher
		}
	}
}

// NewBank 创建银行工具集。
func NewBank(l *ledger.Ledger, opts ...BankOption) *Bank {
	b := &Bank{
		ledger:    l,
		publisher: events.LogPublisher{},
		log:       logger.Named("tools"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// CheckBalance 查询账户余额。
func (b *Bank) CheckBalance(accountID string) string {
	account, ok := b.ledger.BalanceOf(accountID)
	if !ok {
		return fmt.Sprintf("账户 %s 不存在", accountID)
	}
	return fmt.Sprintf("账户 %s (%s) 的当前余额为: %s 元", account.ID, account.Name, account.Balance.String())
}

// TransferMoney 执行转账。失败原因以文本返回，不作为 error。
func (b *Bank) TransferMoney(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal) string {
	result := b.ledger.Transfer(fromAccountID, toAccountID, amount)
	if !result.Success {
		metrics.ObserveTransfer(string(result.Reason))
		b.log.Info("转账被拒绝",
			slog.String("from", fromAccountID),
			slog.String("to", toAccountID),
			slog.String("amount", amount.String()),
			slog.String("reason", string(result.Reason)),
		)
		return fmt.Sprintf("转账失败: %s", result.Message)
	}

	metrics.ObserveTransfer("success")
	event := events.TransferEvent{
		ID:          uuid.NewString(),
		From:        fromAccountID,
		To:          toAccountID,
		Amount:      amount,
		FromBalance: result.FromBalance,
		ToBalance:   result.ToBalance,
		OccurredAt:  result.Debit.Timestamp,
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.log.Warn("转账事件发布失败", slog.Any("error", err), slog.String("event_id", event.ID))
	}
	return result.Message
}

// ListAccounts 列出全部账户，每行一个。
func (b *Bank) ListAccounts() string {
	accounts := b.ledger.ListAll()
	if len(accounts) == 0 {
		return "没有可用账户"
	}
	lines := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		lines = append(lines, fmt.Sprintf("账户ID: %s, 姓名: %s, 余额: %s 元", acc.ID, acc.Name, acc.Balance.String()))
	}
	return "可用账户列表:\n" + strings.Join(lines, "\n")
}

// Tools 返回三个银行工具的定义。
func (b *Bank) Tools() []Tool {
	return []Tool{
		{
			Name:        NameCheckBalance,
			Description: "查询账户余额。参数 account_id 为账户ID，例如 \"1001\"。",
			Parameters: schema([]string{"account_id"}, map[string]any{
				"account_id": map[string]any{"type": "string", "description": "账户ID"},
			}),
			Call: func(_ context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					AccountID string `json:"account_id"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return fmt.Sprintf("参数解析失败: %v", err), nil
				}
				return b.CheckBalance(strings.TrimSpace(args.AccountID)), nil
			},
			Pending: func(input map[string]any) string {
				return fmt.Sprintf("正在查询账户 %s 的余额，请稍候...", argString(input, "account_id", ""))
			},
		},
		{
			Name:        NameTransferMoney,
			Description: "执行转账操作。需要源账户ID、目标账户ID与转账金额（必须大于0）。",
			Parameters: schema([]string{"from_account_id", "to_account_id", "amount"}, map[string]any{
				"from_account_id": map[string]any{"type": "string", "description": "源账户ID"},
				"to_account_id":   map[string]any{"type": "string", "description": "目标账户ID"},
				"amount":          map[string]any{"type": "number", "description": "转账金额"},
			}),
			Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					FromAccountID string          `json:"from_account_id"`
					ToAccountID   string          `json:"to_account_id"`
					Amount        decimal.Decimal `json:"amount"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return fmt.Sprintf("参数解析失败: %v", err), nil
				}
				return b.TransferMoney(ctx,
					strings.TrimSpace(args.FromAccountID),
					strings.TrimSpace(args.ToAccountID),
					args.Amount,
				), nil
			},
			Pending: func(input map[string]any) string {
				return fmt.Sprintf("正在处理从账户 %s 向账户 %s 转账 %s 元的请求...",
					argString(input, "from_account_id", ""),
					argString(input, "to_account_id", ""),
					argString(input, "amount", "0"),
				)
			},
		},
		{
			Name:        NameListAccounts,
			Description: "列出所有可用账户。",
			Parameters:  schema(nil, map[string]any{}),
			Call: func(context.Context, json.RawMessage) (string, error) {
				return b.ListAccounts(), nil
			},
			Pending: func(map[string]any) string {
				return "正在获取账户列表，请稍候..."
			},
		},
	}
}

// NewBankRegistry 创建只包含银行工具的注册表。
func NewBankRegistry(b *Bank) *Registry {
	registry, err := NewRegistry(b.Tools()...)
	if err != nil {
		panic(err)
	}
	return registry
}
