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

// Package llm defines the provider-neutral adapter contract: one Generate
// call per step, a canonical StepResult, the typed error taxonomy, and the
// shared retry policy. Provider packages (anthropic, openai, unified)
// implement Adapter; the chat session owns the surrounding tool loop.
package llm

import (
	"context"

	"github.com/teradata-labs/warp/pkg/types"
)

// Finish reasons reported in StepResult.FinishReason.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// StepType classifies one step of a turn.
type StepType string

const (
	// StepInitial is the first provider call of a turn.
	StepInitial StepType = "initial"

	// StepContinue is a step that requested tool calls and so continues
	// the loop.
	StepContinue StepType = "continue"

	// StepToolResult is a step invoked with freshly appended tool results.
	StepToolResult StepType = "tool-result"

	// StepFinal is the step that produced the turn's final text.
	StepFinal StepType = "final"
)

// StepTypeFor classifies a completed step from its position in the loop and
// its outcome.
func StepTypeFor(stepIndex int, followsToolResults, hasToolCalls bool) StepType {
	switch {
	case hasToolCalls:
		return StepContinue
	case followsToolResults:
		return StepToolResult
	case stepIndex == 0:
		return StepInitial
	default:
		return StepFinal
	}
}

// Request carries everything one provider invocation needs. Messages are
// already compressed and closure-ordered; each adapter's formatter reshapes
// them into the provider's wire format.
type Request struct {
	// Messages is the canonical log, system snapshot included when set.
	Messages []types.Message

	// SystemPrompt is the resolved system text. Adapters whose wire format
	// carries the system prompt out-of-band use this; others fold it into
	// the message array.
	SystemPrompt string

	// Tools is the aggregated tool set offered to the model.
	Tools []types.Tool

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxOutputTokens caps the completion length when positive.
	MaxOutputTokens int

	// Stream enables token streaming; OnToken receives each text chunk.
	Stream  bool
	OnToken func(token string)
}

// StepResult is the canonical outcome of one provider invocation.
type StepResult struct {
	// Text is the assistant text of this step, fully concatenated when the
	// step streamed.
	Text string

	// ToolCalls are the tool invocations the model requested, in order.
	ToolCalls []types.ToolCall

	// FinishReason is the provider's normalized stop reason.
	FinishReason string

	// StepType is filled by the loop owner via StepTypeFor.
	StepType StepType

	// Usage is this step's token consumption as reported by the provider.
	Usage types.Usage
}

// Adapter is one provider/router binding. Implementations perform exactly
// one provider invocation per Generate call and must be safe for use from
// a single session goroutine.
type Adapter interface {
	// Generate runs one step against the provider.
	Generate(ctx context.Context, req *Request) (*StepResult, error)

	// Provider identifies the backing provider, e.g. "anthropic".
	Provider() string

	// Model is the configured model name.
	Model() string
}
