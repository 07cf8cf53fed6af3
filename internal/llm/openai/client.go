package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "BankAgent/internal/errors"
	"BankAgent/internal/llm"
)

// 支持的服务商。两者都实现 OpenAI 兼容的 Chat Completions 接口。
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	deepSeekBaseURL   = "https://api.deepseek.com"
	openAIModelName   = "gpt-3.5-turbo"
	deepSeekModelName = "deepseek-chat"
	defaultTimeout    = 60 * time.Second
)

// Config 描述了调用 Chat Completions API 所需的信息。
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// Client 通过 HTTP 调用 OpenAI 兼容的大模型服务。
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建客户端，未填写的字段按服务商补齐默认值。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 API Key")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if provider != ProviderOpenAI && provider != ProviderDeepSeek {
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.Provider)
	}

	model := strings.TrimSpace(cfg.Model)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if provider == ProviderDeepSeek {
		if baseURL == "" {
			baseURL = deepSeekBaseURL
		}
		if model == "" || model == openAIModelName {
			model = deepSeekModelName
		}
	} else {
		if baseURL == "" {
			baseURL = openAIBaseURL
		}
		if model == "" {
			model = openAIModelName
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Model 返回实际使用的模型名称。
func (c *Client) Model() string { return c.model }

// Provider 返回服务商名称。
func (c *Client) Provider() string { return c.provider }

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

// Chat 发送一轮对话并返回助手消息。
func (c *Client) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(llm.CodeProviderFailure, err, "构建请求失败")
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(llm.CodeProviderFailure, err, fmt.Sprintf("请求 %s 失败", c.provider))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		cause := fmt.Errorf("%s 返回错误状态 %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, xerrors.Wrap(llm.CodeForStatus(resp.StatusCode), cause, "大模型请求失败",
			xerrors.WithMetadata("status", strconv.Itoa(resp.StatusCode)),
			xerrors.WithMetadata("provider", c.provider),
		)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content   string         `json:"content"`
				ToolCalls []wireToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(llm.CodeProviderFailure, err, "解析响应失败")
	}
	if len(decoded.Choices) == 0 {
		return nil, xerrors.New(llm.CodeProviderFailure, "响应中没有有效的 choices")
	}

	message := decoded.Choices[0].Message
	out := &llm.Response{Content: strings.TrimSpace(message.Content)}
	for _, call := range message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		wire := wireMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
				ID:       call.ID,
				Type:     "function",
				Function: wireFunction{Name: call.Name, Arguments: call.Arguments},
			})
		}
		messages = append(messages, wire)
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0,
	}

	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, def := range req.Tools {
			var tool wireTool
			tool.Type = "function"
			tool.Function.Name = def.Name
			tool.Function.Description = def.Description
			tool.Function.Parameters = def.Parameters
			if tool.Function.Parameters == nil {
				tool.Function.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			tools = append(tools, tool)
		}
		body["tools"] = tools
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化请求失败")
	}
	return encoded, nil
}
