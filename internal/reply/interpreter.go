package reply

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// GenericPlaceholder 在无法识别具体工具时使用。
	GenericPlaceholder = "正在处理您的请求，请稍候..."
	// MalformedMessage 在回复仍为结构化工具调用时替换原文。
	MalformedMessage = "抱歉，系统返回了格式错误。请尝试重新提问，或检查 API 配置。"
	// EmptyMessage 在无法得到任何回复时使用。
	EmptyMessage = "抱歉，我无法处理您的请求。请检查您的输入是否正确。"
)

// PlaceholderSource 根据工具名称与参数渲染执行中的提示语。
// tools.Registry 实现了该接口。
type PlaceholderSource interface {
	Placeholder(action string, input map[string]any) (string, bool)
}

// Interpreter 把 Outcome 转换为展示给用户的唯一一段文本。
type Interpreter struct {
	placeholders PlaceholderSource
}

// NewInterpreter 创建解释器。placeholders 可以为 nil，此时只使用通用提示语。
func NewInterpreter(placeholders PlaceholderSource) *Interpreter {
	return &Interpreter{placeholders: placeholders}
}

// Interpret 返回本轮回复，结果永远非空。
func (i *Interpreter) Interpret(outcome Outcome) string {
	return finalize(i.candidate(outcome))
}

func (i *Interpreter) candidate(outcome Outcome) string {
	// 工具输出优先于模型的叙述。
	if answer, ok := lastToolResult(outcome.Trace); ok {
		return answer
	}

	switch outcome.Kind {
	case KindMalformed:
		payload, ok := parseLeakedCall(outcome.Text)
		if !ok {
			return outcome.Text
		}
		return i.placeholder(payload)
	default:
		return outcome.Text
	}
}

func (i *Interpreter) placeholder(payload leakedCall) string {
	if i == nil || i.placeholders == nil || payload.Action == "" || payload.InputInvalid {
		return GenericPlaceholder
	}
	if text, ok := i.placeholders.Placeholder(payload.Action, payload.Input); ok && strings.TrimSpace(text) != "" {
		return text
	}
	return GenericPlaceholder
}

// finalize 对候选回复做最后的过滤。
func finalize(answer string) string {
	trimmed := strings.TrimSpace(answer)
	if strings.HasPrefix(trimmed, "{") {
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "action") || strings.Contains(lower, "tool") {
			return MalformedMessage
		}
	}
	if trimmed == "" {
		return EmptyMessage
	}
	return answer
}

// leakedCall 是泄漏到文本通道中的工具调用。
// InputInvalid 表示 action_input 存在但不是 JSON 对象。
type leakedCall struct {
	Action       string
	Input        map[string]any
	InputInvalid bool
}

// parseLeakedCall 尝试把文本解析为 {"action": ..., "action_input": ...}。
// 只有解析成功且包含 action 或 action_input 字段时才返回 true。
func parseLeakedCall(raw string) (leakedCall, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		return leakedCall{}, false
	}
	rawAction, hasAction := fields["action"]
	rawInput, hasInput := fields["action_input"]
	if !hasAction && !hasInput {
		return leakedCall{}, false
	}

	var call leakedCall
	if hasAction {
		// action 不是字符串时按未知工具处理。
		_ = json.Unmarshal(rawAction, &call.Action)
	}
	if hasInput {
		call.Input, call.InputInvalid = decodeInput(rawInput)
	}
	return call, true
}

// decodeInput 解析 action_input，兼容对象与内嵌 JSON 字符串两种写法。
// 第二个返回值为 true 表示内容无法解析为对象。
func decodeInput(raw json.RawMessage) (map[string]any, bool) {
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = json.RawMessage(nested)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var input map[string]any
	if err := decoder.Decode(&input); err != nil {
		return nil, true
	}
	return input, false
}
