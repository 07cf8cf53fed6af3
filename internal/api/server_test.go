package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"BankAgent/internal/agent"
	"BankAgent/internal/chat"
	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/ledger"
	"BankAgent/internal/llm"
	"BankAgent/internal/reply"
	"BankAgent/internal/tools"
)

// transferInvoker 直接执行一次转账工具，模拟模型选择了 transfer_money。
type transferInvoker struct {
	registry *tools.Registry
}

func (t transferInvoker) Invoke(ctx context.Context, _ string, _ []llm.Message) (*agent.Invocation, error) {
	args := `{"from_account_id":"1001","to_account_id":"1002","amount":500}`
	out, err := t.registry.Call(ctx, tools.NameTransferMoney, args)
	if err != nil {
		return nil, err
	}
	return &agent.Invocation{Trace: []agent.Step{{Tool: tools.NameTransferMoney, Input: args, Output: out}}}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *ledger.Ledger) {
	t.Helper()
	l := ledger.NewDefault()
	registry := tools.NewBankRegistry(tools.NewBank(l))
	svc := chat.NewService(reply.NewInterpreter(registry), chat.WithInvoker(transferInvoker{registry: registry}))
	return NewServer(":0", svc, l, opts...), l
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConversationFlow(t *testing.T) {
	server, l := newTestServer(t)
	h := server.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusCreated)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.SessionID == "" {
		t.Fatalf("decode session: %v %s", err, rec.Body.String())
	}

	path := "/api/v1/sessions/" + created.SessionID + "/messages"
	rec = do(t, h, http.MethodPost, path, `{"content":"从账户1001向账户1002转账500元"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d body %s", rec.Code, rec.Body.String())
	}
	var got chat.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if got.Failed || !strings.HasPrefix(got.Text, "转账成功") {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if balance, _ := l.BalanceOf("1002"); balance.Balance.String() != "5500" {
		t.Fatalf("unexpected balance: %s", balance.Balance)
	}

	rec = do(t, h, http.MethodGet, path, "")
	var transcript struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript.Messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %+v", transcript.Messages)
	}
}

func TestSessionMessageErrors(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	t.Run("unknown session", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/sessions/missing/messages", `{"content":"hi"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["code"] != string(xerrors.CodeNotFound) || body["retryable"] != false {
			t.Fatalf("unexpected error body: %+v", body)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/sessions/any/messages", `{`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/sessions", "")
		var created map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &created)
		rec = do(t, h, http.MethodPost, "/api/v1/sessions/"+created["session_id"]+"/messages", `{"content":"  "}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/v1/sessions/any/messages", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/sessions/a/b/messages", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestAccounts(t *testing.T) {
	server, l := newTestServer(t)
	h := server.Handler()
	if res := l.Transfer("1001", "1003", decimal.NewFromInt(5000)); !res.Success {
		t.Fatalf("seed transfer failed: %s", res.Message)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var list struct {
		Accounts []struct {
			ID      string `json:"account_id"`
			Name    string `json:"name"`
			Display string `json:"display"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(list.Accounts) != 3 || list.Accounts[0].Display != "¥5,000.00" || list.Accounts[2].Display != "¥13,000.00" {
		t.Fatalf("unexpected accounts: %+v", list.Accounts)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/1001/transactions", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"kind":"debit"`) {
		t.Fatalf("unexpected transactions response: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/9999/transactions", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"llm_configured":true`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
	_ = do(t, h, http.MethodGet, "/api/v1/accounts", "")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `bankagent_http_requests_total{code="200",handler="accounts",method="GET"}`) {
		t.Fatalf("request metrics missing from exposition")
	}
}

func TestRateLimit(t *testing.T) {
	server, _ := newTestServer(t, WithRateLimit(0.001, 2))
	h := server.Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/api/v1/accounts", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodGet, "/api/v1/accounts", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health checks are not rate limited, got %d", rec.Code)
	}
}

func TestWithContextRejectsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	server, _ := newTestServer(t)

	rec := do(t, withContext(ctx, server.Handler()), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestServiceErrorReportsRetryable(t *testing.T) {
	server, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.writeServiceError(rec, xerrors.New(xerrors.CodeStorageFailure, "redis unavailable"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "redis unavailable" || body["retryable"] != true {
		t.Fatalf("unexpected error body: %+v", body)
	}
}
