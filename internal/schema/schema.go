package schema

import (
	"errors"
	"fmt"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a single function invocation requested by the model.
// Arguments stays the raw JSON text the provider streamed.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message 对话消息
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant only
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool only
}

// ToolSpec is the provider-facing description of a callable tool.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCallMessage reproduces a model turn that requested a tool.
func AssistantToolCallMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage carries a tool result back to the model.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

var (
	ErrInvalidRole      = errors.New("invalid message role")
	ErrMissingCallID    = errors.New("tool message without tool_call_id")
	ErrUnexpectedCalls  = errors.New("tool_calls on non-assistant message")
	ErrUnexpectedCallID = errors.New("tool_call_id on non-tool message")
	ErrOrphanToolResult = errors.New("tool message does not answer a preceding tool call")
)

// Validate rejects messages whose payload does not fit their role.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return ErrMissingCallID
	}
	if m.Role != RoleTool && m.ToolCallID != "" {
		return ErrUnexpectedCallID
	}
	if m.Role != RoleAssistant && len(m.ToolCalls) > 0 {
		return ErrUnexpectedCalls
	}
	return nil
}

// ValidateHistory checks every message and that each tool result answers a
// call id emitted earlier by an assistant message.
func ValidateHistory(messages []Message) error {
	seen := map[string]struct{}{}
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		for _, tc := range m.ToolCalls {
			seen[tc.ID] = struct{}{}
		}
		if m.Role == RoleTool {
			if _, ok := seen[m.ToolCallID]; !ok {
				return fmt.Errorf("message %d: %w (%s)", i, ErrOrphanToolResult, m.ToolCallID)
			}
		}
	}
	return nil
}

// Plain strips tool metadata, keeping only user/assistant role+content pairs.
// This is the shape persisted across turns.
func Plain(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 && m.Content == "" {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}
