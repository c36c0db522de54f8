package types

import (
	"encoding/json"
	"fmt"
)

// Role tags a conversation message.
// A transcript is made of user, assistant (model) and tool (tool-result) messages.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is the JSON object the model supplied, kept as-is.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one turn of a routing conversation.
// Role decides which of the other fields are meaningful:
//   - user: Content
//   - assistant: Content and/or ToolCalls
//   - tool: Content, ToolCallID, ToolName and IsError
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolResultMessage(callID, toolName, content string, isError bool) Message {
	return Message{Role: RoleTool, ToolCallID: callID, ToolName: toolName, Content: content, IsError: isError}
}

// Validate checks that the fields set on the message agree with its role.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser:
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("user message must not carry tool calls or a tool call id")
		}
	case RoleAssistant:
		if m.ToolCallID != "" {
			return fmt.Errorf("assistant message must not carry a tool call id")
		}
		for _, c := range m.ToolCalls {
			if c.ID == "" || c.Name == "" {
				return fmt.Errorf("assistant tool call must have an id and a name")
			}
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("tool message must reference a tool call id")
		}
		if len(m.ToolCalls) > 0 {
			return fmt.Errorf("tool message must not carry tool calls")
		}
	default:
		return fmt.Errorf("unknown message role %q", m.Role)
	}
	return nil
}

// ValidateTranscript checks every message and that each tool message answers a call
// made by the closest preceding assistant message.
func ValidateTranscript(msgs []Message) error {
	var pending map[string]bool
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		switch m.Role {
		case RoleAssistant:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				pending[c.ID] = true
			}
		case RoleTool:
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: tool result for unknown call id %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
		case RoleUser:
			pending = nil
		}
	}
	return nil
}

// RouteRequest is the input of the routing operation.
type RouteRequest struct {
	Request string `json:"request"`
}

// RouteResponse carries the full transcript produced by one routing call.
type RouteResponse struct {
	Conversation []Message `json:"conversation"`
}

// SearchURLsResponse lists candidate server urls for a request, most relevant first.
type SearchURLsResponse struct {
	URLs []string `json:"urls"`
}
