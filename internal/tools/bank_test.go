package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"BankAgent/internal/events"
	"BankAgent/internal/ledger"
)

type recordingPublisher struct {
	events []events.TransferEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event events.TransferEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestCheckBalance(t *testing.T) {
	bank := NewBank(ledger.NewDefault())

	if got := bank.CheckBalance("1001"); got != "账户 1001 (张三) 的当前余额为: 10000 元" {
		t.Fatalf("unexpected balance text: %q", got)
	}
	if got := bank.CheckBalance("9999"); got != "账户 9999 不存在" {
		t.Fatalf("unexpected not-found text: %q", got)
	}
}

func TestTransferMoneyPublishesOnSuccessOnly(t *testing.T) {
	pub := &recordingPublisher{}
	bank := NewBank(ledger.NewDefault(), WithPublisher(pub))

	ok := bank.TransferMoney(context.Background(), "1001", "1002", decimal.NewFromInt(500))
	if !strings.HasPrefix(ok, "转账成功") {
		t.Fatalf("unexpected success text: %q", ok)
	}
	if len(pub.events) != 1 || pub.events[0].From != "1001" || !pub.events[0].ToBalance.Equal(decimal.NewFromInt(5500)) {
		t.Fatalf("unexpected events: %+v", pub.events)
	}

	failed := bank.TransferMoney(context.Background(), "1001", "9999", decimal.NewFromInt(100))
	if failed != "转账失败: 目标账户 9999 不存在" {
		t.Fatalf("unexpected failure text: %q", failed)
	}
	if len(pub.events) != 1 {
		t.Fatalf("failed transfer must not publish")
	}
}

func TestTransferMoneyIgnoresPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := ledger.NewDefault()
	bank := NewBank(l, WithPublisher(pub))

	got := bank.TransferMoney(context.Background(), "1003", "1001", decimal.NewFromInt(8000))
	if !strings.HasPrefix(got, "转账成功") {
		t.Fatalf("publish failure must not change the tool result: %q", got)
	}
	if balance, _ := l.BalanceOf("1003"); !balance.Balance.IsZero() {
		t.Fatalf("transfer should have been applied, balance %s", balance.Balance)
	}
}

func TestListAccounts(t *testing.T) {
	got := NewBank(ledger.NewDefault()).ListAccounts()
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus three lines, got %q", got)
	}
	if lines[1] != "账户ID: 1001, 姓名: 张三, 余额: 10000 元" {
		t.Fatalf("unexpected first line: %q", lines[1])
	}

	empty, err := ledger.New(nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if got := NewBank(empty).ListAccounts(); got != "没有可用账户" {
		t.Fatalf("unexpected empty text: %q", got)
	}
}

func TestRegistryCall(t *testing.T) {
	registry := NewBankRegistry(NewBank(ledger.NewDefault()))
	ctx := context.Background()

	out, err := registry.Call(ctx, NameTransferMoney, `{"from_account_id":"1001","to_account_id":"1002","amount":"250.5"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "250.5") {
		t.Fatalf("unexpected transfer output: %q", out)
	}

	out, err = registry.Call(ctx, NameCheckBalance, `{"account_id":"1001"}`)
	if err != nil || !strings.Contains(out, "9749.5") {
		t.Fatalf("unexpected balance output: %q %v", out, err)
	}

	out, err = registry.Call(ctx, NameListAccounts, "")
	if err != nil || !strings.HasPrefix(out, "可用账户列表") {
		t.Fatalf("empty arguments should be accepted: %q %v", out, err)
	}

	out, err = registry.Call(ctx, "delete_account", `{}`)
	if err != nil || !strings.Contains(out, "未知工具") {
		t.Fatalf("unknown tool should be reported as text: %q %v", out, err)
	}

	out, err = registry.Call(ctx, NameCheckBalance, `{"account_id":`)
	if err != nil || !strings.Contains(out, "JSON") {
		t.Fatalf("broken arguments should be reported as text: %q %v", out, err)
	}
}

func TestRegistryDefinitionsAndPlaceholders(t *testing.T) {
	registry := NewBankRegistry(NewBank(ledger.NewDefault()))

	defs := registry.Definitions()
	if len(defs) != 3 || defs[0].Name != NameCheckBalance || defs[2].Name != NameListAccounts {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
	if _, err := json.Marshal(defs[1].Parameters); err != nil {
		t.Fatalf("parameters must be JSON encodable: %v", err)
	}

	text, ok := registry.Placeholder(NameTransferMoney, map[string]any{
		"from_account_id": "1001",
		"to_account_id":   "1002",
		"amount":          json.Number("500"),
	})
	if !ok || text != "正在处理从账户 1001 向账户 1002 转账 500 元的请求..." {
		t.Fatalf("unexpected placeholder: %q", text)
	}
	if _, ok := registry.Placeholder("unknown", nil); ok {
		t.Fatalf("unknown tools have no placeholder")
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	tools := NewBank(ledger.NewDefault()).Tools()
	if _, err := NewRegistry(append(tools, tools[0])...); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewRegistry(Tool{Name: "x"}); err == nil {
		t.Fatalf("expected error for missing implementation")
	}
}
