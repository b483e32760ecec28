package agent

import (
	"context"
	"encoding/json"
)

// Message roles on the working conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoice values passed to the model provider.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// ConversationMessage is one entry in a turn's working message list. The list
// is append-only within a turn and discarded when the turn ends.
type ConversationMessage struct {
	Role       string                `json:"role"`
	Content    string                `json:"content"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
	ToolCalls  []AccumulatedToolCall `json:"tool_calls,omitempty"`
}

// ToolCallFragment is one partial piece of a streamed tool call. Only the
// first fragment for a given index carries the call id; later fragments for
// the same index carry argument pieces to append.
type ToolCallFragment struct {
	Index             int    `json:"index"`
	ID                string `json:"id,omitempty"`
	FunctionName      string `json:"function_name,omitempty"`
	ArgumentsFragment string `json:"arguments_fragment,omitempty"`
}

// DeltaChunk is one streamed increment from the model.
type DeltaChunk struct {
	Content     string             `json:"content,omitempty"`
	ToolCalls   []ToolCallFragment `json:"tool_calls,omitempty"`
	TotalTokens int64              `json:"total_tokens,omitempty"`
	HasUsage    bool               `json:"has_usage,omitempty"`
}

// AccumulatedToolCall is a fully reassembled tool invocation. Arguments is the
// concatenation of that call's fragments and must parse as a JSON object once
// the stream ends.
type AccumulatedToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// StreamRequest is one streaming model call.
type StreamRequest struct {
	Model       string
	Messages    []ConversationMessage
	Tools       []ToolSchema
	ToolChoice  string
	Temperature float64
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ModelProvider streams one model turn, delivering each DeltaChunk to onChunk
// in arrival order. onChunk returning an error stops consumption; the provider
// must release its connection and return that error.
type ModelProvider interface {
	StreamChat(ctx context.Context, req StreamRequest, onChunk func(DeltaChunk) error) error
}

// ToolHandler executes one named tool. Expected domain failures (not found,
// service unavailable) are encoded in the result payload, never returned as an
// error; the error return is reserved for handler bugs and context
// cancellation.
type ToolHandler interface {
	Name() string
	Execute(ctx context.Context, args map[string]string) (map[string]any, error)
}

// UsageSink records per-user tool usage. The orchestrator calls it at most
// once per distinct tool name per turn.
type UsageSink interface {
	RecordToolCall(ctx context.Context, userID, toolName string) error
}

// OutputEventType distinguishes multiplexed turn output events.
type OutputEventType string

const (
	EventText          OutputEventType = "text"
	EventToolExecution OutputEventType = "tool_execution"
	EventError         OutputEventType = "error"
	EventDone          OutputEventType = "done"
)

// OutputEvent is one item on a turn's outward event stream.
type OutputEvent struct {
	Type     OutputEventType   `json:"type"`
	Content  string            `json:"content,omitempty"`
	ToolName string            `json:"tool_name,omitempty"`
	ToolArgs map[string]string `json:"tool_args,omitempty"`
	Error    string            `json:"error,omitempty"`
}
