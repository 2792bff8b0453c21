package completion

import (
	"context"
	"errors"
)

// ErrStop may be returned from a StreamFunc to end a stream early without error.
var ErrStop = errors.New("stop stream")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a structured request emitted by the model mid-stream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult answers a previous ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Message is one conversation turn. An assistant message may carry a ToolCall
// instead of text, and a user-side message may carry a ToolResult.
type Message struct {
	Role       Role
	Content    string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

type ParamSpec struct {
	Type        string
	Description string
}

// ToolSpec declares a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
	Required    []string
}

type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Event is a single streamed item: either a text delta or a tool call.
type Event struct {
	Text     string
	ToolCall *ToolCall
}

type StreamFunc func(Event) error

type Client interface {
	// Stream sends req and invokes fn for every event in arrival order.
	// Returning ErrStop from fn ends the stream and Stream returns nil.
	Stream(ctx context.Context, req *Request, fn StreamFunc) error
	// Complete runs a single-prompt, non-streaming completion.
	Complete(ctx context.Context, prompt string) (string, error)
}
