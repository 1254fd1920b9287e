// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package types contains the shared conversation types used across the warp
// runtime. It breaks import cycles by providing the message model that the
// conversation, llm, mcp, and agent packages all depend on.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a conversation message.
type Role string

const (
	// RoleUser marks input from the end user.
	RoleUser Role = "user"

	// RoleAssistant marks model output, including tool-call requests.
	RoleAssistant Role = "assistant"

	// RoleSystem marks the resolved system prompt snapshot. At most one
	// system message may appear in a log, and only at position zero.
	RoleSystem Role = "system"

	// RoleTool marks the result of a single tool call.
	RoleTool Role = "tool"
)

// ImagePart is an inline image attached to a user message.
type ImagePart struct {
	// Data is the raw image payload.
	Data []byte `json:"data"`

	// MimeType is the payload media type, e.g. "image/png".
	MimeType string `json:"mimeType"`
}

// FilePart is an inline file attached to a user message.
type FilePart struct {
	// Data is the raw file payload.
	Data []byte `json:"data"`

	// MimeType is the payload media type, e.g. "application/pdf".
	MimeType string `json:"mimeType"`

	// Filename is the optional original name of the file.
	Filename string `json:"filename,omitempty"`
}

// Part is one element of a multi-part message body. Exactly one of the
// fields is set.
type Part struct {
	// Text is an inline text fragment.
	Text string `json:"text,omitempty"`

	// Image is an inline image fragment.
	Image *ImagePart `json:"image,omitempty"`

	// File is an inline file fragment.
	File *FilePart `json:"file,omitempty"`
}

// ToolCall is an assistant instruction to invoke a named tool with
// structured arguments.
type ToolCall struct {
	// ID correlates the call with its eventual tool result.
	ID string `json:"id"`

	// Name is the tool name as exposed by the aggregated tool set.
	Name string `json:"name"`

	// Arguments holds the decoded JSON arguments. Never nil on a
	// well-formed call; adapters substitute an empty map for null input.
	Arguments map[string]interface{} `json:"arguments"`
}

// Clone returns a deep copy of the tool call.
func (tc ToolCall) Clone() ToolCall {
	out := ToolCall{ID: tc.ID, Name: tc.Name}
	if tc.Arguments != nil {
		out.Arguments = make(map[string]interface{}, len(tc.Arguments))
		for k, v := range tc.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// ArgumentsJSON renders the arguments as compact JSON. Used by formatters
// whose wire shape carries arguments as a string.
func (tc ToolCall) ArgumentsJSON() string {
	if len(tc.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Message is one canonical conversation record. The same shape carries user
// input, assistant output, tool results, and the system prompt snapshot;
// provider-specific wire shapes are produced from it by each adapter's
// formatter.
type Message struct {
	// Role identifies the author.
	Role Role `json:"role"`

	// Content is the plain-text body. Empty when the message carries only
	// Parts or only ToolCalls.
	Content string `json:"content,omitempty"`

	// Parts holds multi-part bodies (text plus images or files). When
	// non-empty it supersedes Content.
	Parts []Part `json:"parts,omitempty"`

	// ToolCalls lists the tool invocations requested by an assistant
	// message. Only valid on RoleAssistant.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID correlates a RoleTool message with the assistant call
	// that produced it.
	ToolCallID string `json:"toolCallId,omitempty"`

	// ToolName names the tool that produced a RoleTool message.
	ToolName string `json:"toolName,omitempty"`

	// Timestamp is the creation time of the message.
	Timestamp time.Time `json:"timestamp"`

	// TokenCount caches the tokenizer estimate for this message. Zero
	// until counted.
	TokenCount int `json:"tokenCount,omitempty"`
}

// NewUserMessage builds a user message from text and optional media parts.
// When parts are present the text is folded in as the leading text part.
func NewUserMessage(text string, parts ...Part) Message {
	msg := Message{
		Role:      RoleUser,
		Timestamp: time.Now(),
	}
	if len(parts) == 0 {
		msg.Content = text
		return msg
	}
	if text != "" {
		msg.Parts = append(msg.Parts, Part{Text: text})
	}
	msg.Parts = append(msg.Parts, parts...)
	return msg
}

// NewAssistantMessage builds an assistant message with optional text and
// tool calls.
func NewAssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage builds the system prompt snapshot message.
func NewSystemMessage(content string) Message {
	return Message{
		Role:      RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewToolResultMessage builds a tool message carrying the serialized result
// of a single tool call.
func NewToolResultMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Timestamp:  time.Now(),
	}
}

// HasMedia reports whether the message carries image or file parts.
func (m Message) HasMedia() bool {
	for _, p := range m.Parts {
		if p.Image != nil || p.File != nil {
			return true
		}
	}
	return false
}

// Text returns the textual body of the message: Content when set, otherwise
// the concatenation of text parts.
func (m Message) Text() string {
	if m.Content != "" || len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			cp := Part{Text: p.Text}
			if p.Image != nil {
				img := *p.Image
				img.Data = append([]byte(nil), p.Image.Data...)
				cp.Image = &img
			}
			if p.File != nil {
				f := *p.File
				f.Data = append([]byte(nil), p.File.Data...)
				cp.File = &f
			}
			out.Parts[i] = cp
		}
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.Clone()
		}
	}
	return out
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Tool describes one invocable tool in provider-neutral form.
type Tool struct {
	// Name is the exposed tool name, unique within an aggregated set.
	Name string `json:"name"`

	// Description explains the tool to the model.
	Description string `json:"description"`

	// Parameters is the JSON-Schema for the tool arguments.
	Parameters map[string]interface{} `json:"parameters"`

	// Server is the owning MCP server id. Empty for in-process tools.
	Server string `json:"server,omitempty"`
}

// Clone returns a copy of the tool with a shallow-copied schema map.
func (t Tool) Clone() Tool {
	out := t
	if t.Parameters != nil {
		out.Parameters = make(map[string]interface{}, len(t.Parameters))
		for k, v := range t.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// Usage accumulates token consumption for one step or one session.
type Usage struct {
	// InputTokens counts prompt-side tokens.
	InputTokens int `json:"inputTokens"`

	// OutputTokens counts completion-side tokens.
	OutputTokens int `json:"outputTokens"`

	// TotalTokens is the sum of input and output.
	TotalTokens int `json:"totalTokens"`
}

// Add accumulates another usage sample.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// SerializeToolResult renders an arbitrary tool result as the string body of
// a RoleTool message. Strings pass through; everything else is JSON-encoded.
func SerializeToolResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case error:
		return v.Error()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
