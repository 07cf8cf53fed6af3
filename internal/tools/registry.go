package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"BankAgent/internal/llm"
)

// Tool 是暴露给智能体的一个具名操作，输入为 JSON 参数，输出为自然语言文本。
type Tool struct {
	Name        string
	Description string
	// Parameters 为参数的 JSON Schema。
	Parameters map[string]any
	Call       func(ctx context.Context, args json.RawMessage) (string, error)
	// Pending 渲染该工具执行中的提示语，input 为模型给出的参数。
	Pending func(input map[string]any) string
}

// Registry 按名称保存工具，并保留注册顺序。
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry 创建工具注册表。名称为空或重复时返回错误。
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("工具名称不能为空")
		}
		if tool.Call == nil {
			return nil, fmt.Errorf("工具 %s 未提供实现", name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("工具 %s 重复注册", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

// Definitions 返回提供给大模型的工具定义。
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return defs
}

// Call 执行指定工具。未知工具与参数错误以文本形式返回，交由模型自行纠正；
// 只有基础设施错误才作为 error 返回。
func (r *Registry) Call(ctx context.Context, name, arguments string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("未知工具: %s，可用工具: %s", name, strings.Join(r.order, ", ")), nil
	}
	raw := strings.TrimSpace(arguments)
	if raw == "" {
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		return fmt.Sprintf("工具 %s 的参数不是合法的 JSON: %s", name, raw), nil
	}
	return tool.Call(ctx, json.RawMessage(raw))
}

// Placeholder 返回指定工具执行中的提示语。工具不存在或未提供提示语时第二个返回值为 false。
func (r *Registry) Placeholder(action string, input map[string]any) (string, bool) {
	tool, ok := r.tools[action]
	if !ok || tool.Pending == nil {
		return "", false
	}
	return tool.Pending(input), true
}

// argString 读取提示语参数，缺省时返回 fallback。
func argString(input map[string]any, key, fallback string) string {
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	return fmt.Sprint(value)
}

// schema 构造一个 object 类型的 JSON Schema。
func schema(required []string, properties map[string]any) map[string]any {
	sorted := append([]string(nil), required...)
	sort.Strings(sorted)
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(sorted) > 0 {
		out["required"] = sorted
	}
	return out
}
