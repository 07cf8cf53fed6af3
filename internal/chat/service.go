// Package chat owns the turn boundary: every user message produces exactly one
// reply, and no error from the model transport escapes a turn.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"BankAgent/internal/agent"
	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/llm"
	"BankAgent/internal/observability/metrics"
	"BankAgent/internal/reply"
	"BankAgent/internal/session"
	"BankAgent/pkg/logger"
)

// MissingKeyMessage 在未配置大模型凭证时作为每一轮的回复。
const MissingKeyMessage = "API Key 未配置。请在环境变量中设置 DEEPSEEK_API_KEY 或 OPENAI_API_KEY"

// CategoryMissingKey 标识因缺少凭证而未调用大模型的轮次。
const CategoryMissingKey = "missing_api_key"

const defaultHistoryLimit = 20

// Invoker 执行一次智能体调用，*agent.Agent 实现了该接口。
type Invoker interface {
	Invoke(ctx context.Context, utterance string, history []llm.Message) (*agent.Invocation, error)
}

// Reply 是一轮对话的结果。Failed 为 true 时 Category 给出失败分类，
// Retryable 表示稍后重发同一条消息可能成功。
type Reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Failed    bool   `json:"failed"`
	Category  string `json:"category,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Service 串联会话记录、智能体与回复解释。
type Service struct {
	invoker      Invoker
	interpreter  *reply.Interpreter
	store        session.Store
	historyLimit int
	now          func() time.Time
	log          *slog.Logger
}

// Option 定义 Service 的可选配置。
type Option func(*Service)

// WithInvoker 配置智能体。未配置时每一轮都返回 MissingKeyMessage。
func WithInvoker(invoker Invoker) Option {
	return func(s *Service) {
		s.invoker = invoker
	}
}

// WithStore 替换默认的内存会话存储。
func WithStore(store session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithHistoryLimit 设置每轮传给智能体的历史消息条数。
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		s.historyLimit = limit
	}
}

// WithClock 替换时间来源，便于测试。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 创建对话服务。
func NewService(interpreter *reply.Interpreter, opts ...Option) *Service {
	if interpreter == nil {
		interpreter = reply.NewInterpreter(nil)
	}
	svc := &Service{
		interpreter:  interpreter,
		store:        session.NewMemoryStore(),
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
		log:          logger.Named("chat"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Configured 表示是否配置了智能体。
func (s *Service) Configured() bool {
	return s.invoker != nil
}

// Open 创建新会话并返回会话 ID。
func (s *Service) Open(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.store.Create(ctx, id); err != nil {
		return "", err
	}
	s.log.Info("会话已创建", slog.String("session_id", id))
	return id, nil
}

// Turn 处理一条用户消息并返回唯一的回复。
// 只有参数错误或会话不存在时返回 error，大模型的任何失败都会转换为回复文本。
func (s *Service) Turn(ctx context.Context, sessionID, text string) (*Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if sessionID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	if text == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息内容不能为空")
	}
	exists, err := s.store.Exists(ctx, sessionID)
	if err != nil {
		s.log.Warn("查询会话失败", slog.String("session_id", sessionID), slog.Any("error", err))
	} else if !exists {
		return nil, xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", sessionID))
	}

	history := s.history(ctx, sessionID)
	s.record(ctx, sessionID, llm.RoleUser, text)

	out := s.answer(ctx, text, history)
	out.SessionID = sessionID
	s.record(ctx, sessionID, llm.RoleAssistant, out.Text)
	return out, nil
}

func (s *Service) answer(ctx context.Context, text string, history []llm.Message) *Reply {
	if s.invoker == nil {
		metrics.ObserveTurn(CategoryMissingKey)
		return &Reply{Text: MissingKeyMessage, Failed: true, Category: CategoryMissingKey}
	}

	inv, err := s.invoker.Invoke(ctx, text, history)
	if err != nil {
		failure := reply.Classify(err)
		retryable := xerrors.RetryableError(err)
		var meta map[string]string
		if e, ok := xerrors.From(err); ok {
			meta = e.Metadata()
		}
		metrics.ObserveTurn(string(failure.Category))
		logger.Audit().Warn("大模型调用失败",
			slog.String("category", string(failure.Category)),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.String("severity", string(xerrors.SeverityOf(err))),
			slog.Bool("retryable", retryable),
			slog.String("detail", failure.Detail),
			slog.Any("metadata", meta),
		)
		return &Reply{Text: failure.Message(), Failed: true, Category: string(failure.Category), Retryable: retryable}
	}

	outcome := reply.FromInvocation(inv)
	metrics.ObserveTurn(outcome.Kind.String())
	return &Reply{Text: s.interpreter.Interpret(outcome)}
}

// History 返回会话的全部记录。
func (s *Service) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	return s.store.History(ctx, sessionID, 0)
}

// Close 释放会话存储。
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) history(ctx context.Context, sessionID string) []llm.Message {
	if s.invoker == nil || s.historyLimit <= 0 {
		return nil
	}
	stored, err := s.store.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		s.log.Warn("读取会话记录失败", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil
	}
	history := make([]llm.Message, 0, len(stored))
	for _, msg := range stored {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history
}

func (s *Service) record(ctx context.Context, sessionID, role, content string) {
	msg := session.Message{Role: role, Content: content, CreatedAt: s.now().UTC()}
	if err := s.store.Append(ctx, sessionID, msg); err != nil {
		s.log.Warn("写入会话记录失败", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}
