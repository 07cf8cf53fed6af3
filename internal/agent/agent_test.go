package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/ledger"
	"BankAgent/internal/llm"
	"BankAgent/internal/tools"
)

// scriptedLLM 按顺序返回预设的响应，并记录收到的请求。
type scriptedLLM struct {
	responses []*llm.Response
	err       error
	wait      time.Duration
	requests  []llm.Request
}

func (s *scriptedLLM) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &llm.Response{Content: "完成"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newRegistry(t *testing.T) (*tools.Registry, *ledger.Ledger) {
	t.Helper()
	l := ledger.NewDefault()
	return tools.NewBankRegistry(tools.NewBank(l)), l
}

func TestInvokeRunsToolsAndRecordsTrace(t *testing.T) {
	registry, l := newRegistry(t)
	client := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      tools.NameTransferMoney,
			Arguments: `{"from_account_id":"1001","to_account_id":"1002","amount":500}`,
		}}},
		{Content: "已为您完成转账。"},
	}}

	inv, err := New(client, registry).Invoke(context.Background(), "从账户1001向账户1002转账500元", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.FinalText != "已为您完成转账。" {
		t.Fatalf("unexpected final text: %q", inv.FinalText)
	}
	if len(inv.Trace) == 0 {
		t.Fatalf("expected a tool step in the trace")
	}
	last := inv.Trace[len(inv.Trace)-1]
	if last.Tool != tools.NameTransferMoney || !strings.HasPrefix(last.Output, "转账成功") {
		t.Fatalf("unexpected trace: %+v", inv.Trace)
	}
	if balance, _ := l.BalanceOf("1001"); balance.Balance.String() != "9500" {
		t.Fatalf("transfer not applied: %s", balance.Balance)
	}

	second := client.requests[1].Messages
	tail := second[len(second)-1]
	if tail.Role != llm.RoleTool || tail.ToolCallID != "call_1" {
		t.Fatalf("tool output should be fed back to the model: %+v", tail)
	}
	if len(client.requests[0].Tools) != 3 {
		t.Fatalf("expected tool definitions to be sent, got %d", len(client.requests[0].Tools))
	}
}

func TestInvokeStopsAtMaxSteps(t *testing.T) {
	registry, _ := newRegistry(t)
	loop := &llm.Response{ToolCalls: []llm.ToolCall{{ID: "x", Name: tools.NameListAccounts}}}
	client := &scriptedLLM{responses: []*llm.Response{loop, loop, loop, loop}}

	inv, err := New(client, registry, WithMaxSteps(2)).Invoke(context.Background(), "列出账户", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.requests) != 2 || len(inv.Trace) != 2 {
		t.Fatalf("expected two rounds, got %d requests and %d steps", len(client.requests), len(inv.Trace))
	}
	if inv.FinalText != "" {
		t.Fatalf("final text should stay empty, got %q", inv.FinalText)
	}
}

func TestInvokeTrimsHistory(t *testing.T) {
	registry, _ := newRegistry(t)
	client := &scriptedLLM{}
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "一"},
		{Role: llm.RoleAssistant, Content: "二"},
		{Role: llm.RoleUser, Content: "三"},
	}

	if _, err := New(client, registry, WithHistoryDepth(2)).Invoke(context.Background(), "四", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := client.requests[0].Messages
	if len(msgs) != 4 || msgs[0].Role != llm.RoleSystem || msgs[1].Content != "二" || msgs[3].Content != "四" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestInvokeTimeout(t *testing.T) {
	registry, _ := newRegistry(t)
	client := &scriptedLLM{wait: 50 * time.Millisecond}

	_, err := New(client, registry, WithLLMTimeout(10*time.Millisecond)).Invoke(context.Background(), "查询余额", nil)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestInvokeKeepsProviderCodes(t *testing.T) {
	registry, _ := newRegistry(t)
	client := &scriptedLLM{err: xerrors.New(llm.CodeUnauthorized, "401 Unauthorized")}

	_, err := New(client, registry).Invoke(context.Background(), "查询余额", nil)
	if xerrors.CodeOf(err) != llm.CodeUnauthorized {
		t.Fatalf("provider code should survive, got %v", err)
	}

	client = &scriptedLLM{err: errors.New("connection reset")}
	_, err = New(client, registry).Invoke(context.Background(), "查询余额", nil)
	if xerrors.CodeOf(err) != llm.CodeProviderFailure {
		t.Fatalf("plain errors should be wrapped, got %v", err)
	}
}

func TestInvokeRejectsMissingCollaborators(t *testing.T) {
	if _, err := New(nil, nil).Invoke(context.Background(), "hi", nil); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected error: %v", err)
	}
	registry, _ := newRegistry(t)
	if _, err := New(&scriptedLLM{}, registry).Invoke(context.Background(), "  ", nil); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected error: %v", err)
	}
}
