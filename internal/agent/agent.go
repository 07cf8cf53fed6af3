package agent

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/llm"
	"BankAgent/internal/tools"
	"BankAgent/pkg/logger"
)

// DefaultSystemPrompt 是银行助手的默认系统提示词。
const DefaultSystemPrompt = `你是一个专业的银行智能助手。你的职责是帮助用户查询账户余额和执行转账操作。

你可以使用的工具：
1. check_balance - 查询指定账户的余额
2. transfer_money - 执行转账操作
3. list_accounts - 列出所有可用账户

重要提示：
- 使用工具后，必须根据工具返回的结果，用自然、友好的中文向用户解释结果
- 不要直接返回工具调用的 JSON 格式，而是要用通俗易懂的语言告诉用户结果
- 使用友好的语气与用户交流
- 在执行转账前确认账户ID和金额
- 提供清晰的操作结果反馈
- 如果用户询问账户信息，可以使用 list_accounts 工具查看可用账户

当前可用账户示例：
- 账户ID: 1001, 姓名: 张三
- 账户ID: 1002, 姓名: 李四
- 账户ID: 1003, 姓名: 王五

请始终用中文回复用户，并在使用工具后提供清晰的解释。`

const (
	defaultMaxSteps     = 5
	defaultHistoryDepth = 20
)

// Agent 协调大模型与银行工具，是一次对话轮次的执行者。
type Agent struct {
	llmClient    llm.Client
	registry     *tools.Registry
	systemPrompt string
	maxSteps     int
	historyDepth int
	llmTimeout   time.Duration
	log          *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithMaxSteps 设置单轮对话中最多调用大模型的次数。
func WithMaxSteps(steps int) Option {
	return func(a *Agent) {
		a.maxSteps = steps
	}
}

// WithHistoryDepth 设置发送给大模型的历史消息条数。
func WithHistoryDepth(depth int) Option {
	return func(a *Agent) {
		a.historyDepth = depth
	}
}

// WithSystemPrompt 替换默认的系统提示词。
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithLLMTimeout 设置每次调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, registry *tools.Registry, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:    llmClient,
		registry:     registry,
		systemPrompt: DefaultSystemPrompt,
		maxSteps:     defaultMaxSteps,
		historyDepth: defaultHistoryDepth,
		log:          logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxSteps <= 0 {
		ag.maxSteps = defaultMaxSteps
	}
	if ag.historyDepth < 0 {
		ag.historyDepth = 0
	}
	return ag
}

// Invoke 处理一条用户输入。模型返回的每个工具调用都会通过注册表执行，
// 直到模型给出不含工具调用的回复或达到步数上限。
// 返回的错误只来自大模型调用本身。
func (a *Agent) Invoke(ctx context.Context, utterance string, history []llm.Message) (*Invocation, error) {
	if a.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if a.registry == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置工具注册表")
	}
	if strings.TrimSpace(utterance) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "用户输入不能为空")
	}

	messages := a.buildMessages(utterance, history)
	definitions := a.registry.Definitions()
	result := &Invocation{}

	for step := 0; step < a.maxSteps; step++ {
		resp, err := a.chat(ctx, llm.Request{Messages: messages, Tools: definitions})
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			result.FinalText = resp.Content
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			output, err := a.registry.Call(ctx, call.Name, call.Arguments)
			if err != nil {
				output = "工具执行失败: " + err.Error()
				a.log.Warn("工具执行失败", slog.String("tool", call.Name), slog.Any("error", err))
			}
			result.Trace = append(result.Trace, Step{Tool: call.Name, Input: call.Arguments, Output: output})
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	a.log.Warn("达到工具调用步数上限", slog.Int("max_steps", a.maxSteps), slog.Int("tool_calls", len(result.Trace)))
	return result, nil
}

func (a *Agent) chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	resp, err := a.llmClient.Chat(llmCtx, req)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(llm.CodeProviderFailure, err, "大模型推理失败")
	}
	if resp == nil {
		return &llm.Response{}, nil
	}
	return resp, nil
}

func (a *Agent) buildMessages(utterance string, history []llm.Message) []llm.Message {
	if a.historyDepth == 0 {
		history = nil
	} else if len(history) > a.historyDepth {
		history = history[len(history)-a.historyDepth:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	for _, msg := range history {
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
}
