package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"BankAgent/internal/chat"
	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/ledger"
	"BankAgent/internal/observability/metrics"
	"BankAgent/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Server 负责暴露 REST 接口，供前端驱动对话与查看账户。
type Server struct {
	addr    string
	chat    *chat.Service
	ledger  *ledger.Ledger
	limiter *clientLimiter
	log     *slog.Logger
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithRateLimit 按客户端 IP 限制 /api/ 下的请求速率，rps <= 0 时不限流。
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newClientLimiter(rps, burst)
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, svc *chat.Service, l *ledger.Ledger, opts ...Option) *Server {
	s := &Server{addr: addr, chat: svc, ledger: l, log: logger.Named("api")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", instrument("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/v1/sessions", s.api("sessions", s.handleSessions))
	mux.Handle("/api/v1/sessions/", s.api("session_messages", s.handleSessionMessages))
	mux.Handle("/api/v1/accounts", s.api("accounts", s.handleAccounts))
	mux.Handle("/api/v1/accounts/", s.api("account_transactions", s.handleAccountTransactions))
	return mux
}

func (s *Server) api(name string, h http.HandlerFunc) http.Handler {
	return instrument(name, s.limiter.wrap(h))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"llm_configured": s.chat != nil && s.chat.Configured(),
	})
}

// handleSessions 创建新的对话会话。
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "对话服务未初始化")
		return
	}
	id, err := s.chat.Open(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleSessionMessages 处理 /api/v1/sessions/{id}/messages。
func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/sessions/", "/messages")
	if !ok {
		writeError(w, http.StatusNotFound, "未知的路径")
		return
	}
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "对话服务未初始化")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "请求体解析失败")
			return
		}
		out, err := s.chat.Turn(r.Context(), id, req.Content)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodGet:
		history, err := s.chat.History(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": history})
	default:
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET/POST")
	}
}

type accountView struct {
	ledger.Summary
	Display string `json:"display"`
}

// handleAccounts 返回全部账户及余额。
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	summaries := s.ledger.ListAll()
	views := make([]accountView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, accountView{Summary: summary, Display: ledger.FormatYuan(summary.Balance)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

// handleAccountTransactions 处理 /api/v1/accounts/{id}/transactions。
func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	id, ok := pathParam(r.URL.Path, "/api/v1/accounts/", "/transactions")
	if !ok {
		writeError(w, http.StatusNotFound, "未知的路径")
		return
	}
	txs, found := s.ledger.Transactions(id)
	if !found {
		writeError(w, http.StatusNotFound, "账户 "+id+" 不存在")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "transactions": txs})
}

// pathParam 解析 prefix{id}suffix 形式的路径。
func pathParam(path, prefix, suffix string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	case xerrors.CodeStorageFailure, xerrors.CodeInitializationFailure:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("请求处理失败", slog.Any("error", err))
	}
	message := err.Error()
	if e, ok := xerrors.From(err); ok {
		message = e.Message()
	}
	writeJSON(w, status, map[string]any{
		"error":     message,
		"code":      string(xerrors.CodeOf(err)),
		"retryable": xerrors.RetryableError(err),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
