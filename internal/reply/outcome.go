package reply

import (
	"strings"

	"BankAgent/internal/agent"
)

// Kind 标识 Outcome 的具体形态。
type Kind int

const (
	// KindFinalText 表示模型给出了普通文本回复（可能为空）。
	KindFinalText Kind = iota
	// KindToolTrace 表示最后一次工具调用给出了可用结果。
	KindToolTrace
	// KindMalformed 表示文本通道中出现了疑似工具调用的结构化内容。
	KindMalformed
)

// String 实现 fmt.Stringer。
func (k Kind) String() string {
	switch k {
	case KindToolTrace:
		return "tool_trace"
	case KindMalformed:
		return "malformed"
	default:
		return "final_text"
	}
}

// Outcome 是一次智能体调用结果的标签联合体。
// Text 在 KindFinalText 时为回复文本，在 KindMalformed 时为原始内容。
type Outcome struct {
	Kind  Kind
	Text  string
	Trace []agent.Step
}

// FinalText 构造普通文本结果。以 "{" 开头的文本按泄漏内容处理。
func FinalText(text string) Outcome {
	if looksStructured(text) {
		return Malformed(text, nil)
	}
	return Outcome{Kind: KindFinalText, Text: text}
}

// ToolTrace 构造工具调用结果。
func ToolTrace(trace []agent.Step) Outcome {
	return Outcome{Kind: KindToolTrace, Trace: trace}
}

// Malformed 构造泄漏内容结果。
func Malformed(raw string, trace []agent.Step) Outcome {
	return Outcome{Kind: KindMalformed, Text: raw, Trace: trace}
}

// FromInvocation 将智能体调用结果归类为 Outcome。
func FromInvocation(inv *agent.Invocation) Outcome {
	if inv == nil {
		return FinalText("")
	}
	if _, ok := lastToolResult(inv.Trace); ok {
		return ToolTrace(inv.Trace)
	}
	if looksStructured(inv.FinalText) {
		return Malformed(inv.FinalText, inv.Trace)
	}
	return FinalText(inv.FinalText)
}

func looksStructured(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "{")
}

// lastToolResult 返回最后一次工具调用的非空输出。
func lastToolResult(trace []agent.Step) (string, bool) {
	if len(trace) == 0 {
		return "", false
	}
	output := trace[len(trace)-1].Output
	if strings.TrimSpace(output) == "" {
		return "", false
	}
	return output, true
}
