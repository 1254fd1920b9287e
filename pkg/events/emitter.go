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

package events

// Emitter is a session-bound view of the bus: every event it publishes
// carries the session id. Sessions hold an Emitter rather than the bus so
// agent-scoped and conversation-scoped publications stay distinct.
type Emitter struct {
	bus       *Bus
	sessionID string
}

// NewEmitter binds a session id to a bus.
func NewEmitter(bus *Bus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

// SessionID returns the bound session id.
func (e *Emitter) SessionID() string {
	return e.sessionID
}

// Thinking signals the start of a turn.
func (e *Emitter) Thinking() {
	e.bus.Publish(TopicThinking, Thinking{SessionID: e.sessionID})
}

// Chunk publishes one streamed text delta.
func (e *Emitter) Chunk(delta string) {
	e.bus.Publish(TopicChunk, Chunk{SessionID: e.sessionID, Delta: delta})
}

// ToolCall reports a tool invocation about to run.
func (e *Emitter) ToolCall(toolName string, args map[string]interface{}) {
	e.bus.Publish(TopicToolCall, ToolCallStarted{
		SessionID: e.sessionID,
		ToolName:  toolName,
		Args:      args,
	})
}

// ToolResult reports a finished tool invocation.
func (e *Emitter) ToolResult(toolName string, result interface{}, err error) {
	payload := ToolCallFinished{
		SessionID: e.sessionID,
		ToolName:  toolName,
		Result:    result,
	}
	if err != nil {
		payload.Err = err.Error()
	}
	e.bus.Publish(TopicToolResult, payload)
}

// Response publishes the final assistant text for a turn.
func (e *Emitter) Response(text string) {
	e.bus.Publish(TopicResponse, Response{SessionID: e.sessionID, Text: text})
}

// Error reports an aborted turn.
func (e *Emitter) Error(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.bus.Publish(TopicError, TurnError{SessionID: e.sessionID, Err: msg})
}

// ConversationReset signals a cleared history.
func (e *Emitter) ConversationReset() {
	e.bus.Publish(TopicConversationReset, ConversationReset{SessionID: e.sessionID})
}

// InputValidationFailed reports input rejected before any model call.
func (e *Emitter) InputValidationFailed(issues []string, provider, model string) {
	e.bus.Publish(TopicInputValidation, InputValidationFailed{
		SessionID: e.sessionID,
		Issues:    issues,
		Provider:  provider,
		Model:     model,
	})
}
