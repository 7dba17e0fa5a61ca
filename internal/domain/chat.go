package domain

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is the provider-agnostic chat message shape exchanged between
// the chat service and LLM integrations. Assistant messages may request tool
// calls; tool messages answer one call by ID.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition advertises a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}
