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

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/conversation"
	"github.com/teradata-labs/warp/pkg/events"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// scriptedAdapter replays a fixed sequence of step results. When loop is
// set the last step repeats forever, which drives the iteration-cap tests.
type scriptedAdapter struct {
	mu       sync.Mutex
	provider string
	model    string
	steps    []*llm.StepResult
	err      error
	loop     bool
	calls    int
	requests []*llm.Request
}

func (a *scriptedAdapter) Generate(_ context.Context, req *llm.Request) (*llm.StepResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	idx := a.calls
	a.calls++

	if a.err != nil {
		return nil, a.err
	}
	if idx >= len(a.steps) {
		if !a.loop || len(a.steps) == 0 {
			return nil, fmt.Errorf("scripted adapter exhausted after %d steps", len(a.steps))
		}
		idx = len(a.steps) - 1
	}
	step := *a.steps[idx]
	if req.Stream && req.OnToken != nil {
		for _, r := range step.Text {
			req.OnToken(string(r))
		}
	}
	return &step, nil
}

func (a *scriptedAdapter) Provider() string {
	if a.provider == "" {
		return "openai"
	}
	return a.provider
}

func (a *scriptedAdapter) Model() string {
	if a.model == "" {
		return "gpt-4o-mini"
	}
	return a.model
}

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func textStep(text string) *llm.StepResult {
	return &llm.StepResult{Text: text, FinishReason: llm.FinishStop}
}

func toolStep(id, name string, args map[string]interface{}) *llm.StepResult {
	return &llm.StepResult{
		ToolCalls:    []types.ToolCall{{ID: id, Name: name, Arguments: args}},
		FinishReason: llm.FinishToolCalls,
	}
}

// fakeTools is a scripted ToolSource.
type fakeTools struct {
	mu      sync.Mutex
	defs    []types.Tool
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeTools) Tools() []types.Tool { return f.defs }

func (f *fakeTools) Execute(_ context.Context, name string, _ map[string]interface{}) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if err, ok := f.errs[name]; ok {
		return "", err
	}
	if out, ok := f.results[name]; ok {
		return out, nil
	}
	return "", &ToolNotFoundError{Name: name}
}

// staticPrompt is a fixed-text PromptBuilder.
type staticPrompt string

func (s staticPrompt) Build(context.Context) string { return string(s) }

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		APIKey:        "test-key",
		MaxIterations: 10,
	}
}

// newTestSession wires a ChatSession with in-memory collaborators.
func newTestSession(id string, cfg config.LLMConfig, adapter llm.Adapter, ts ToolSource, bus *events.Bus, store storage.SessionStore) *ChatSession {
	if ts == nil {
		ts = &fakeTools{}
	}
	return &ChatSession{
		id:        id,
		createdAt: time.Now(),
		adapter:   adapter,
		llmCfg:    cfg,
		conv: conversation.NewManager(
			conversation.WithMaxInputTokens(config.ResolveMaxInputTokens(cfg)),
		),
		lastActivity: time.Now(),
		provider:     cfg.Provider,
		model:        cfg.Model,
		emitter:      events.NewEmitter(bus, id),
		prompts:      staticPrompt("You are a helpful assistant."),
		tools:        ts,
		store:        store,
		retry:        llm.RetryConfig{MaxAttempts: 1},
		logger:       zap.NewNop(),
	}
}

// drainEvents collects everything currently buffered on an event channel.
func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func topicsOf(evs []events.Event) []events.Topic {
	out := make([]events.Topic, len(evs))
	for i, ev := range evs {
		out[i] = ev.Topic
	}
	return out
}

// checkClosure verifies the tool-call pairing rule over a log: every
// assistant tool call is answered exactly once before the next assistant
// message.
func checkClosure(msgs []types.Message) error {
	open := make(map[string]bool)
	for i, msg := range msgs {
		switch msg.Role {
		case types.RoleAssistant:
			if len(open) > 0 {
				return fmt.Errorf("assistant message at %d while %d calls open", i, len(open))
			}
			for _, tc := range msg.ToolCalls {
				if open[tc.ID] {
					return fmt.Errorf("duplicate tool call id %q", tc.ID)
				}
				open[tc.ID] = true
			}
		case types.RoleTool:
			if !open[msg.ToolCallID] {
				return fmt.Errorf("tool result at %d without open call %q", i, msg.ToolCallID)
			}
			delete(open, msg.ToolCallID)
		case types.RoleUser:
			if len(open) > 0 {
				return fmt.Errorf("user message at %d while calls open", i)
			}
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("%d tool calls never answered", len(open))
	}
	return nil
}
