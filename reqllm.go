package reqllm

import (
	"context"
	"slices"
	"strings"
)

// Role is the message role in a chat (system, user, assistant, tool).
type Role string

// Chat message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is a sealed interface for message parts. Only package types implement it via isContentPart().
type ContentPart interface {
	isContentPart()
}

// Content part type tags, as reported by PartType.
const (
	PartText       = "text"
	PartToolCall   = "tool_call"
	PartToolResult = "tool_result"
)

// TextPart holds plain text content.
type TextPart struct {
	Text string
}

func (TextPart) isContentPart() {}

// ToolCallPart represents a model request to call a function (in assistant message).
type ToolCallPart struct {
	ID   string
	Name string
	Args string // JSON string of arguments
}

func (ToolCallPart) isContentPart() {}

// ToolResultPart is the result of a tool call (in message with Role "tool").
type ToolResultPart struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
}

func (ToolResultPart) isContentPart() {}

// PartType returns the type tag of p, or "" for nil.
func PartType(p ContentPart) string {
	switch p.(type) {
	case TextPart:
		return PartText
	case ToolCallPart:
		return PartToolCall
	case ToolResultPart:
		return PartToolResult
	default:
		return ""
	}
}

// Message is a single chat message with role and ordered content parts.
type Message struct {
	Role    Role
	Content []ContentPart
}

// SystemMessage returns a system message holding a single text part.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart{Text: text}}}
}

// UserMessage returns a user message holding a single text part.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart{Text: text}}}
}

// AssistantMessage returns an assistant message holding a single text part.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart{Text: text}}}
}

// ToolResultMessage returns a tool message answering the call with the given ID.
func ToolResultMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: []ContentPart{ToolResultPart{ToolCallID: callID, Name: name, Content: content}}}
}

// Text concatenates the text parts of the message, ignoring other parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Conversation is an ordered sequence of messages. Treat it as immutable: Append returns a new value.
type Conversation []Message

// Append returns a new conversation with msgs added; the receiver is left untouched.
func (c Conversation) Append(msgs ...Message) Conversation {
	return slices.Concat(c, msgs)
}

// Clone returns a copy with cloned content slices.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = Message{Role: m.Role, Content: slices.Clone(m.Content)}
	}
	return out
}

// ToolFunc executes a tool with decoded JSON arguments.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a callable tool description. Parameters is a JSON Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Callback    ToolFunc       `json:"-"`
}

// Usage holds token counts reported by the provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Response is the normalized result of decoding a provider response.
// Object is set only for OperationObject.
type Response struct {
	ID           string
	Model        string
	Message      Message
	Object       any
	Usage        Usage
	FinishReason string
}

// Text returns the concatenated text content of the response message.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.Text()
}

// ToolCalls returns the tool call parts of the response message in order.
func (r *Response) ToolCalls() []ToolCallPart {
	if r == nil {
		return nil
	}
	var out []ToolCallPart
	for _, p := range r.Message.Content {
		if tc, ok := p.(ToolCallPart); ok {
			out = append(out, tc)
		}
	}
	return out
}

// Clone returns a shallow copy with a cloned content slice. Object is shared.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Message.Content = slices.Clone(r.Message.Content)
	return &out
}
