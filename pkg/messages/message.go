package messages

import (
	json "github.com/goccy/go-json"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallData is a tool invocation requested by the assistant in an earlier turn.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one message of the conversation sent to a provider.
type Message struct {
	Role       Role           `json:"role"`
	Content    ContentOrParts `json:"content"`
	ToolCalls  []ToolCallData `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
}

// System creates a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Content: ContentOrParts{Content: text}}
}

// User creates a user message. When parts are given the text is prepended as a
// text part.
func User(text string, parts ...ContentPart) Message {
	if len(parts) == 0 {
		return Message{Role: RoleUser, Content: ContentOrParts{Content: text}}
	}
	all := make([]ContentPart, 0, len(parts)+1)
	if text != "" {
		all = append(all, Text(text))
	}
	all = append(all, parts...)
	return Message{Role: RoleUser, Content: ContentOrParts{Parts: all}}
}

// Assistant creates an assistant text message.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: ContentOrParts{Content: text}}
}

// AssistantToolCalls creates an assistant message that only carries tool calls.
func AssistantToolCalls(text string, calls ...ToolCallData) Message {
	return Message{Role: RoleAssistant, Content: ContentOrParts{Content: text}, ToolCalls: calls}
}

// ToolResponse creates the message answering a tool call.
func ToolResponse(callID, toolName, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    ContentOrParts{Content: content},
		ToolCallID: callID,
		ToolName:   toolName,
		IsError:    isError,
	}
}

// HasImages reports whether any message in the conversation carries image input.
func HasImages(msgs []Message) bool {
	for _, m := range msgs {
		if m.Content.HasImages() {
			return true
		}
	}
	return false
}
