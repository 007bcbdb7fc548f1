package apitypes

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who (or what) authored a Message.
type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleToolCall    Role = "tool_call"
	RoleToolResult  Role = "tool_result"
	RoleSystem      Role = "system"
)

// Message is immutable once persisted. Content is an ordered list of
// ContentPart; MarshalContentParts/UnmarshalContentParts manage the
// wire-level tagged union on the Content field.
type Message struct {
	MessageID string        `json:"messageId"`
	SessionID string        `json:"sessionId"`
	Role      Role          `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
}

// wireMessage mirrors Message with Content as a tagged-union blob, since
// the default encoding/json struct codec cannot marshal/unmarshal a
// []ContentPart interface slice on its own.
type wireMessage struct {
	MessageID string          `json:"messageId"`
	SessionID string          `json:"sessionId"`
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MarshalJSON encodes Content via MarshalContentParts so a Message
// round-trips through any store.Store backend or RPC wire frame.
func (m Message) MarshalJSON() ([]byte, error) {
	content, err := MarshalContentParts(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{
		MessageID: m.MessageID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   content,
		CreatedAt: m.CreatedAt,
	})
}

// UnmarshalJSON decodes Content via UnmarshalContentParts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := UnmarshalContentParts(w.Content)
	if err != nil {
		return err
	}
	m.MessageID = w.MessageID
	m.SessionID = w.SessionID
	m.Role = w.Role
	m.Content = content
	m.CreatedAt = w.CreatedAt
	return nil
}

// TextOnly wraps text as a Content list holding a single TextPart, useful
// for callers that never send structured parts (e.g. `session.send("hi")`).
func TextOnly(text string) []ContentPart {
	return []ContentPart{&TextPart{Text: text}}
}

// ConcatText concatenates every TextPart in order, so an assistant
// message's text equals the concatenation of its text_delta payloads.
func ConcatText(parts []ContentPart) string {
	var out string
	for _, p := range parts {
		if t, ok := p.(*TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// ContentPartType enumerates the leaf kinds of ContentPart.
type ContentPartType string

const (
	ContentText       ContentPartType = "text"
	ContentThinking   ContentPartType = "thinking"
	ContentImage      ContentPartType = "image"
	ContentFile       ContentPartType = "file"
	ContentToolCall   ContentPartType = "tool-call"
	ContentToolResult ContentPartType = "tool-result"
)

// ContentPart is one element of a Message's structured content. Concrete
// types implement Type() so the Engine and wire codecs can switch on the
// discriminator without reflection.
type ContentPart interface {
	Type() ContentPartType
}

type (
	// TextPart is a run of plain text, either complete or (mid-stream) partial.
	TextPart struct {
		Text string `json:"text"`
	}

	// ThinkingPart carries provider "extended thinking" / chain-of-thought text.
	ThinkingPart struct {
		Text string `json:"text"`
	}

	// ImagePart references inline or remote image data.
	ImagePart struct {
		MIMEType string `json:"mimeType"`
		URL      string `json:"url,omitempty"`
		Data     []byte `json:"data,omitempty"`
	}

	// FilePart references an attached file.
	FilePart struct {
		Name     string `json:"name"`
		MIMEType string `json:"mimeType"`
		URL      string `json:"url,omitempty"`
		Data     []byte `json:"data,omitempty"`
	}

	// ToolCallPart is an assistant request to invoke a tool.
	ToolCallPart struct {
		ToolCallID string          `json:"toolCallId"`
		ToolName   string          `json:"toolName"`
		Input      json.RawMessage `json:"input"`
	}

	// ToolResultPart carries the outcome of a tool call back to the model.
	ToolResultPart struct {
		ToolCallID string          `json:"toolCallId"`
		ToolName   string          `json:"toolName"`
		Output     json.RawMessage `json:"output,omitempty"`
		IsError    bool            `json:"isError,omitempty"`
		Error      string          `json:"error,omitempty"`
	}
)

func (*TextPart) Type() ContentPartType       { return ContentText }
func (*ThinkingPart) Type() ContentPartType   { return ContentThinking }
func (*ImagePart) Type() ContentPartType      { return ContentImage }
func (*FilePart) Type() ContentPartType       { return ContentFile }
func (*ToolCallPart) Type() ContentPartType   { return ContentToolCall }
func (*ToolResultPart) Type() ContentPartType { return ContentToolResult }

// wireContentPart is the envelope used to marshal/unmarshal a ContentPart
// without losing its concrete type, matching the discriminated-union
// approach in DESIGN NOTES §9.
type wireContentPart struct {
	Type ContentPartType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalContentParts encodes a ContentPart slice with explicit type tags.
func MarshalContentParts(parts []ContentPart) ([]byte, error) {
	wire := make([]wireContentPart, len(parts))
	for i, p := range parts {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal content part %d: %w", i, err)
		}
		wire[i] = wireContentPart{Type: p.Type(), Data: data}
	}
	return json.Marshal(wire)
}

// UnmarshalContentParts decodes a ContentPart slice previously produced by
// MarshalContentParts, reconstructing the concrete type for each element.
func UnmarshalContentParts(raw []byte) ([]ContentPart, error) {
	var wire []wireContentPart
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal content parts: %w", err)
	}
	out := make([]ContentPart, len(wire))
	for i, w := range wire {
		var part ContentPart
		switch w.Type {
		case ContentText:
			part = &TextPart{}
		case ContentThinking:
			part = &ThinkingPart{}
		case ContentImage:
			part = &ImagePart{}
		case ContentFile:
			part = &FilePart{}
		case ContentToolCall:
			part = &ToolCallPart{}
		case ContentToolResult:
			part = &ToolResultPart{}
		default:
			return nil, fmt.Errorf("unmarshal content parts: unknown type %q", w.Type)
		}
		if err := json.Unmarshal(w.Data, part); err != nil {
			return nil, fmt.Errorf("unmarshal content part %d (%s): %w", i, w.Type, err)
		}
		out[i] = part
	}
	return out, nil
}
