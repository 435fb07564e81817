package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a chat conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model request to invoke a named tool with JSON
// arguments.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a callable function exposed to the model. Parameters
// is a JSON Schema object.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one chat completion call.
type Request struct {
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// Response is the model's reply. When the model wants tools invoked,
// Message.ToolCalls is non-empty and Content may be blank.
type Response struct {
	Message      Message
	FinishReason string
}

// StreamHandler receives incremental content while a streamed reply is
// produced.
type StreamHandler func(delta string) error

// Client is the uniform interface to a chat completion provider.
type Client interface {
	// Chat performs one completion call.
	Chat(ctx context.Context, req Request) (*Response, error)
	// ChatStream performs one completion call, invoking the handler
	// for each content delta, and returns the assembled response.
	ChatStream(ctx context.Context, req Request, handler StreamHandler) (*Response, error)
}
