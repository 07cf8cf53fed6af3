// Package llm defines the chat-completion contract used by the agent: messages,
// tool definitions and tool calls, plus the provider error codes that transport
// implementations attach to failed requests.
package llm
