package agent

// Step 记录一次工具调用：工具名称、模型给出的原始参数以及工具返回的文本。
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Invocation 是一次智能体调用的结果。FinalText 可能为空，也可能是泄漏到
// 文本通道中的工具调用 JSON，由 reply 包负责解释。
type Invocation struct {
	FinalText string `json:"final_text"`
	Trace     []Step `json:"trace,omitempty"`
}

