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

// Package events provides the per-agent publish/subscribe bus. Publishing
// never blocks: subscriber mailboxes are bounded and drop their oldest entry
// on overflow.
package events

import "time"

// Topic names an event stream on the bus.
type Topic string

// Conversation-scoped topics carry the llmservice prefix; agent-scoped
// topics are bare.
const (
	TopicThinking          Topic = "llmservice:thinking"
	TopicChunk             Topic = "llmservice:chunk"
	TopicToolCall          Topic = "llmservice:toolCall"
	TopicToolResult        Topic = "llmservice:toolResult"
	TopicResponse          Topic = "llmservice:response"
	TopicError             Topic = "llmservice:error"
	TopicConversationReset Topic = "llmservice:conversationReset"
	TopicServerConnected   Topic = "mcpServerConnected"
	TopicToolsUpdated      Topic = "availableToolsUpdated"
	TopicInputValidation   Topic = "inputValidationFailed"
)

// Event is one published record. Payload holds the topic-specific struct
// below.
type Event struct {
	// Topic names the stream this event belongs to.
	Topic Topic

	// Seq is a bus-wide monotonically increasing sequence number.
	Seq uint64

	// Time is the publication time.
	Time time.Time

	// Payload is the topic-specific payload struct.
	Payload interface{}
}

// Thinking signals that a turn has started and the model is working.
type Thinking struct {
	SessionID string
}

// Chunk carries one streamed text delta.
type Chunk struct {
	SessionID string
	Delta     string
}

// ToolCallStarted reports a tool invocation requested by the model.
type ToolCallStarted struct {
	SessionID string
	ToolName  string
	Args      map[string]interface{}
}

// ToolCallFinished reports the outcome of a tool invocation. Err is empty on
// success.
type ToolCallFinished struct {
	SessionID string
	ToolName  string
	Result    interface{}
	Err       string
}

// Response carries the final assistant text for a turn.
type Response struct {
	SessionID string
	Text      string
}

// TurnError reports an aborted turn.
type TurnError struct {
	SessionID string
	Err       string
}

// ConversationReset signals that a session history was cleared.
type ConversationReset struct {
	SessionID string
}

// ServerConnected reports the outcome of an MCP server connection attempt.
type ServerConnected struct {
	Name    string
	Success bool
	Err     string
}

// ToolsUpdated announces a refreshed aggregated tool set. Source is "mcp"
// or "custom".
type ToolsUpdated struct {
	Tools  []string
	Source string
}

// InputValidationFailed reports input rejected before any model call.
type InputValidationFailed struct {
	SessionID string
	Issues    []string
	Provider  string
	Model     string
}
