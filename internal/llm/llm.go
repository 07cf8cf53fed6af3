package llm

import "context"

// 聊天消息的角色。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 是一条对话消息。Role 为 tool 时 ToolCallID 指向对应的调用。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall 表示模型请求执行的一次工具调用，Arguments 为原始 JSON 文本。
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition 描述暴露给模型的工具。Parameters 为 JSON Schema。
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request 描述发送给大模型的一次对话请求。
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Response 是大模型返回的一条助手消息。
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}
