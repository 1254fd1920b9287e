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
	"strings"
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

// maxIterationsMessage is returned when the tool loop hits the iteration cap
// without the model producing any final text.
const maxIterationsMessage = "Reached maximum number of tool call iterations without a final response."

// ToolSource supplies the aggregated tool set and executes calls by name.
// The facade's tool router (MCP servers plus in-process tools) satisfies it.
type ToolSource interface {
	Tools() []types.Tool
	Execute(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// PromptBuilder resolves the system prompt for a turn. The prompt manager
// satisfies it.
type PromptBuilder interface {
	Build(ctx context.Context) string
}

// ChatSession is one conversation: it owns the adapter and the log and runs
// the turn loop. Turns are serialized by the session mutex; metadata reads
// stay available while a turn is in flight.
type ChatSession struct {
	id        string
	createdAt time.Time

	mu      sync.Mutex
	adapter llm.Adapter
	llmCfg  config.LLMConfig
	conv    *conversation.Manager

	metaMu       sync.Mutex
	lastActivity time.Time
	messageCount int
	usage        types.Usage
	provider     string
	model        string

	emitter *events.Emitter
	prompts PromptBuilder
	tools   ToolSource
	store   storage.SessionStore
	retry   llm.RetryConfig
	logger  *zap.Logger
}

// ID returns the session identifier.
func (s *ChatSession) ID() string { return s.id }

// Run executes one conversational turn and returns the final assistant
// text. An empty result with a nil error means the input was blank.
func (s *ChatSession) Run(ctx context.Context, in Input) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.llmCfg
	if issues := validateInput(cfg, in); len(issues) > 0 {
		s.emitter.InputValidationFailed(issues, cfg.Provider, cfg.Model)
		return "", &InputValidationError{Issues: issues, Provider: cfg.Provider, Model: cfg.Model}
	}
	if in.Empty() {
		return "", nil
	}

	if err := s.conv.AddUserMessage(in.Text, in.parts()...); err != nil {
		return "", err
	}
	s.persistLast(ctx)
	s.emitter.Thinking()

	system := s.prompts.Build(ctx)
	s.conv.SetSystemPrompt(system)

	toolSet := s.tools.Tools()

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = config.DefaultMaxIterations
	}

	var (
		finalText    strings.Builder
		usage        types.Usage
		followsTools bool
	)

	for step := 0; step < maxIter; step++ {
		msgs, err := s.conv.Prepared(ctx)
		if err != nil {
			s.emitter.Error(err)
			return "", err
		}

		req := &llm.Request{
			Messages:        msgs,
			SystemPrompt:    system,
			Tools:           toolSet,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Stream:          in.Stream,
		}
		if in.Stream {
			req.OnToken = s.emitter.Chunk
		}

		var result *llm.StepResult
		err = llm.Retry(ctx, s.retry, func(ctx context.Context) error {
			var stepErr error
			result, stepErr = s.adapter.Generate(ctx, req)
			return stepErr
		})
		if err != nil {
			s.emitter.Error(err)
			return "", err
		}
		result.StepType = llm.StepTypeFor(step, followsTools, len(result.ToolCalls) > 0)
		usage.Add(result.Usage)

		if err := s.conv.AddAssistantMessage(result.Text, result.ToolCalls); err != nil {
			s.emitter.Error(err)
			return "", err
		}
		s.persistLast(ctx)

		if result.Text != "" {
			if finalText.Len() > 0 {
				finalText.WriteString("\n")
			}
			finalText.WriteString(result.Text)
		}

		if len(result.ToolCalls) == 0 {
			return s.finishTurn(ctx, finalText.String(), usage), nil
		}

		for _, call := range result.ToolCalls {
			s.emitter.ToolCall(call.Name, call.Arguments)
			out, execErr := s.tools.Execute(ctx, call.Name, call.Arguments)

			var body interface{} = out
			if execErr != nil {
				// Tool failures never abort the turn; the model sees the
				// error and may recover.
				body = map[string]interface{}{"error": execErr.Error()}
				s.logger.Warn("tool execution failed",
					zap.String("tool", call.Name), zap.Error(execErr))
			}
			s.emitter.ToolResult(call.Name, out, execErr)

			if err := s.conv.AddToolResult(call.ID, call.Name, body); err != nil {
				s.emitter.Error(err)
				return "", err
			}
			s.persistLast(ctx)
		}
		followsTools = true
	}

	text := finalText.String()
	if text == "" {
		text = maxIterationsMessage
	}
	return s.finishTurn(ctx, text, usage), nil
}

// finishTurn emits the response event and folds the turn into the session
// metadata. Caller holds the session mutex.
func (s *ChatSession) finishTurn(ctx context.Context, text string, usage types.Usage) string {
	s.emitter.Response(text)

	s.metaMu.Lock()
	s.lastActivity = time.Now()
	s.usage.Add(usage)
	meta := s.snapshotLocked()
	s.metaMu.Unlock()

	if err := s.store.SaveMetadata(ctx, meta); err != nil {
		s.logger.Warn("saving session metadata failed",
			zap.String("session", s.id), zap.Error(err))
	}
	return text
}

// persistLast appends the most recent log message to the store. Persistence
// failures are logged, not fatal: the in-memory log stays authoritative for
// the live session.
func (s *ChatSession) persistLast(ctx context.Context) {
	msg, ok := s.conv.Last()
	if !ok {
		return
	}
	s.metaMu.Lock()
	s.messageCount++
	s.metaMu.Unlock()

	if err := s.store.AppendMessage(ctx, s.id, msg); err != nil {
		s.logger.Warn("persisting message failed",
			zap.String("session", s.id), zap.Error(err))
	}
}

// SwapAdapter atomically replaces the session's adapter and LLM settings.
// The conversation log is untouched; only the token budget is re-derived.
func (s *ChatSession) SwapAdapter(adapter llm.Adapter, cfg config.LLMConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter = adapter
	s.llmCfg = cfg.Clone()
	s.conv.SetMaxInputTokens(config.ResolveMaxInputTokens(cfg))

	s.metaMu.Lock()
	s.provider = cfg.Provider
	s.model = cfg.Model
	s.metaMu.Unlock()
}

// Reset truncates the conversation, preserving the session and its adapter.
func (s *ChatSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv.Reset()
	if err := s.store.TruncateHistory(ctx, s.id); err != nil && err != storage.ErrSessionNotFound {
		return err
	}
	s.emitter.ConversationReset()
	return nil
}

// History returns a copy of the conversation log, system snapshot excluded.
func (s *ChatSession) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.History()
}

// Metadata returns a point-in-time metadata snapshot. Safe to call while a
// turn is running.
func (s *ChatSession) Metadata() *storage.SessionMetadata {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.snapshotLocked()
}

func (s *ChatSession) snapshotLocked() *storage.SessionMetadata {
	return &storage.SessionMetadata{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		MessageCount: s.messageCount,
		Provider:     s.provider,
		Model:        s.model,
		Usage:        s.usage,
	}
}

// touch refreshes the activity clock, keeping the session off the expiry
// sweep while it is being used.
func (s *ChatSession) touch() {
	s.metaMu.Lock()
	s.lastActivity = time.Now()
	s.metaMu.Unlock()
}

func (s *ChatSession) lastActive() time.Time {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.lastActivity
}
