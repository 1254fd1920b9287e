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

// Package conversation owns one session's canonical message log: append
// operations that enforce the tool-call pairing rules, token accounting,
// and the compression policies that keep the log inside the model's input
// budget.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/teradata-labs/warp/pkg/tokens"
	"github.com/teradata-labs/warp/pkg/types"
	"go.uber.org/zap"
)

// marginNumerator/-Denominator set the compression threshold at 90% of the
// configured input budget, leaving headroom for the response.
const (
	marginNumerator   = 9
	marginDenominator = 10
)

// truncatedResultPreview is how much of a tool result survives stage-two
// compression.
const truncatedResultPreview = 80

// Summarizer condenses a span of messages into replacement text. Injected;
// when absent, compression stops after the built-in stages.
type Summarizer func(ctx context.Context, span []types.Message) (string, error)

// Manager is the single owner of one conversation log. It is not
// goroutine-safe on its own; the session serializes access.
type Manager struct {
	log     []types.Message
	system  string
	pending map[string]string // open tool-call id -> tool name

	counter        *tokens.Counter
	maxInputTokens int
	summarizer     Summarizer
	logger         *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCounter overrides the token counter. Defaults to the shared tiktoken
// counter.
func WithCounter(c *tokens.Counter) Option {
	return func(m *Manager) {
		if c != nil {
			m.counter = c
		}
	}
}

// WithMaxInputTokens sets the input-token budget compression works against.
func WithMaxInputTokens(n int) Option {
	return func(m *Manager) { m.maxInputTokens = n }
}

// WithSummarizer installs the stage-three summarization hook.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates an empty conversation.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pending: make(map[string]string),
		counter: tokens.Default(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetMaxInputTokens adjusts the budget, e.g. after an LLM switch.
func (m *Manager) SetMaxInputTokens(n int) { m.maxInputTokens = n }

// SetSystemPrompt replaces the system snapshot surfaced as the leading
// system message.
func (m *Manager) SetSystemPrompt(text string) { m.system = text }

// SystemPrompt returns the current system snapshot.
func (m *Manager) SystemPrompt() string { return m.system }

// AddUserMessage appends a user message. Rejected while tool calls are
// still unanswered, which would break the pairing rule.
func (m *Manager) AddUserMessage(text string, parts ...types.Part) error {
	if len(m.pending) > 0 {
		return fmt.Errorf("cannot add user message: %d tool call(s) awaiting results", len(m.pending))
	}
	m.append(types.NewUserMessage(text, parts...))
	return nil
}

// AddAssistantMessage appends an assistant message with optional tool
// calls. The calls become pending until each has a result.
func (m *Manager) AddAssistantMessage(content string, toolCalls []types.ToolCall) error {
	if len(m.pending) > 0 {
		return fmt.Errorf("cannot add assistant message: %d tool call(s) awaiting results", len(m.pending))
	}
	seen := make(map[string]bool, len(toolCalls))
	for _, tc := range toolCalls {
		if tc.ID == "" {
			return fmt.Errorf("tool call for %q has no id", tc.Name)
		}
		if seen[tc.ID] {
			return fmt.Errorf("duplicate tool call id %q", tc.ID)
		}
		seen[tc.ID] = true
	}
	for _, tc := range toolCalls {
		m.pending[tc.ID] = tc.Name
	}
	m.append(types.NewAssistantMessage(content, toolCalls))
	return nil
}

// AddToolResult appends the result of one pending tool call. Non-string
// results are serialized to JSON.
func (m *Manager) AddToolResult(toolCallID, toolName string, result interface{}) error {
	if _, open := m.pending[toolCallID]; !open {
		return fmt.Errorf("no pending tool call with id %q", toolCallID)
	}
	delete(m.pending, toolCallID)
	m.append(types.NewToolResultMessage(toolCallID, toolName, types.SerializeToolResult(result)))
	return nil
}

// PendingToolCalls returns the ids of tool calls still awaiting results,
// sorted.
func (m *Manager) PendingToolCalls() []string {
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Messages returns a deep copy of the log, with the system snapshot as the
// leading message when set.
func (m *Manager) Messages() []types.Message {
	out := make([]types.Message, 0, len(m.log)+1)
	if m.system != "" {
		out = append(out, types.NewSystemMessage(m.system))
	}
	out = append(out, types.CloneMessages(m.log)...)
	return out
}

// History returns a deep copy of the log without the system snapshot.
func (m *Manager) History() []types.Message {
	return types.CloneMessages(m.log)
}

// Last returns a copy of the most recently appended message. Used by the
// session to persist each append without copying the whole log.
func (m *Manager) Last() (types.Message, bool) {
	if len(m.log) == 0 {
		return types.Message{}, false
	}
	return m.log[len(m.log)-1].Clone(), true
}

// MessageCount reports the number of logged messages, system excluded.
func (m *Manager) MessageCount() int { return len(m.log) }

// Restore replaces the log with persisted history, rebuilding the pending
// set. Used when loading a stored session.
func (m *Manager) Restore(msgs []types.Message) error {
	pending := make(map[string]string)
	for i, msg := range msgs {
		switch msg.Role {
		case types.RoleSystem:
			if i != 0 {
				return fmt.Errorf("system message at position %d", i)
			}
		case types.RoleAssistant:
			if len(pending) > 0 {
				return fmt.Errorf("assistant message at %d while tool calls are open", i)
			}
			for _, tc := range msg.ToolCalls {
				pending[tc.ID] = tc.Name
			}
		case types.RoleTool:
			if _, open := pending[msg.ToolCallID]; !open {
				return fmt.Errorf("tool result at %d has no matching call", i)
			}
			delete(pending, msg.ToolCallID)
		case types.RoleUser:
			if len(pending) > 0 {
				return fmt.Errorf("user message at %d while tool calls are open", i)
			}
		}
	}

	m.log = nil
	m.system = ""
	for _, msg := range msgs {
		if msg.Role == types.RoleSystem {
			m.system = msg.Content
			continue
		}
		m.append(msg.Clone())
	}
	m.pending = pending
	return nil
}

// Reset empties the log and the pending set. The system snapshot survives.
func (m *Manager) Reset() {
	m.log = nil
	m.pending = make(map[string]string)
}

// CountTotalTokens estimates the token cost of the full log including the
// system snapshot.
func (m *Manager) CountTotalTokens() int {
	total := 0
	if m.system != "" {
		total += m.counter.Count(m.system) + m.counter.CountMessage(types.Message{})
	}
	for _, msg := range m.log {
		total += m.tokensFor(msg)
	}
	return total
}

// Prepared returns the log ready to hand to an adapter, compressed to fit
// the input budget. The returned slice is a deep copy led by the system
// snapshot.
func (m *Manager) Prepared(ctx context.Context) ([]types.Message, error) {
	if err := m.compress(ctx); err != nil {
		return nil, err
	}
	return m.Messages(), nil
}

// append stamps the cached token count and adds to the log.
func (m *Manager) append(msg types.Message) {
	msg.TokenCount = m.counter.CountMessage(msg)
	m.log = append(m.log, msg)
}

func (m *Manager) tokensFor(msg types.Message) int {
	if msg.TokenCount > 0 {
		return msg.TokenCount
	}
	return m.counter.CountMessage(msg)
}

// budget returns the compression threshold, or 0 when no budget is set.
func (m *Manager) budget() int {
	if m.maxInputTokens <= 0 {
		return 0
	}
	return m.maxInputTokens * marginNumerator / marginDenominator
}

// compress shrinks the log until the estimate fits the budget. Without a
// summarizer the oldest user/assistant/tool groups are elided and bulky
// tool results truncated. With a summarizer installed, summarization takes
// the place of elision so the middle of the conversation is condensed
// rather than discarded. Compression never splits a tool-call group and
// never drops the latest user turn.
func (m *Manager) compress(ctx context.Context) error {
	limit := m.budget()
	if limit == 0 || m.CountTotalTokens() <= limit {
		return nil
	}
	before := m.CountTotalTokens()

	if m.summarizer == nil {
		m.elideOldestGroups(limit)
	}
	if m.CountTotalTokens() > limit {
		m.truncateToolResults(limit)
	}
	if m.CountTotalTokens() > limit && m.summarizer != nil {
		if err := m.summarizeMiddle(ctx, limit); err != nil {
			return err
		}
	}

	m.logger.Info("conversation compressed",
		zap.Int("tokensBefore", before),
		zap.Int("tokensAfter", m.CountTotalTokens()),
		zap.Int("limit", limit))
	return nil
}

// groupEnd returns the index one past the tool-call group starting at i:
// the user or assistant message plus any directly attached tool results.
func (m *Manager) groupEnd(i int) int {
	j := i + 1
	for j < len(m.log) && m.log[j].Role == types.RoleTool {
		j++
	}
	return j
}

// lastUserIndex returns the index of the latest user message, or -1.
func (m *Manager) lastUserIndex() int {
	for i := len(m.log) - 1; i >= 0; i-- {
		if m.log[i].Role == types.RoleUser {
			return i
		}
	}
	return -1
}

// elideOldestGroups drops whole leading groups while over the limit,
// always keeping the group that contains the latest user message and
// everything after it.
func (m *Manager) elideOldestGroups(limit int) {
	for m.CountTotalTokens() > limit {
		keepFrom := m.lastUserIndex()
		if keepFrom <= 0 {
			return
		}
		end := m.groupEnd(0)
		if end > keepFrom {
			return
		}
		m.log = m.log[end:]
	}
}

// truncateToolResults replaces bulky tool-result bodies with a short
// preview, oldest first, while over the limit.
func (m *Manager) truncateToolResults(limit int) {
	for i := range m.log {
		if m.CountTotalTokens() <= limit {
			return
		}
		msg := &m.log[i]
		if msg.Role != types.RoleTool || len(msg.Content) <= truncatedResultPreview {
			continue
		}
		// Back off to a rune boundary so the preview stays valid UTF-8.
		cut := truncatedResultPreview
		for cut > 0 && !utf8.RuneStart(msg.Content[cut]) {
			cut--
		}
		msg.Content = fmt.Sprintf("[truncated tool result from %s: %s…]",
			msg.ToolName, msg.Content[:cut])
		msg.TokenCount = m.counter.CountMessage(*msg)
	}
}

// summarizeMiddle replaces everything before the latest user turn with one
// synthesized assistant message.
func (m *Manager) summarizeMiddle(ctx context.Context, limit int) error {
	keepFrom := m.lastUserIndex()
	if keepFrom <= 0 {
		return nil
	}
	span := types.CloneMessages(m.log[:keepFrom])

	summary, err := m.summarizer(ctx, span)
	if err != nil {
		return fmt.Errorf("summarizing conversation: %w", err)
	}

	replacement := types.NewAssistantMessage("Summary of the earlier conversation: "+summary, nil)
	replacement.TokenCount = m.counter.CountMessage(replacement)
	m.log = append([]types.Message{replacement}, m.log[keepFrom:]...)

	if m.CountTotalTokens() > limit {
		m.logger.Warn("conversation still over budget after summarization",
			zap.Int("tokens", m.CountTotalTokens()), zap.Int("limit", limit))
	}
	return nil
}
