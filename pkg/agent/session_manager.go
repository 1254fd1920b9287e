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
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/conversation"
	"github.com/teradata-labs/warp/pkg/events"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/state"
	"github.com/teradata-labs/warp/pkg/storage"
)

// defaultSweepInterval is how often the expiry loop scans for idle sessions.
const defaultSweepInterval = time.Minute

// AdapterFactory builds an LLM adapter from a resolved configuration. The
// default wires the llm/factory package; tests inject scripted adapters.
type AdapterFactory func(cfg config.LLMConfig, logger *zap.Logger) (llm.Adapter, error)

// SessionManager owns the sessionId -> session map: a bounded in-memory
// cache over the session store, with LRU eviction and TTL expiry. Evicted
// and expired sessions keep their persisted history and can be rehydrated.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*ChatSession

	state      *state.Manager
	store      storage.SessionStore
	bus        *events.Bus
	prompts    PromptBuilder
	tools      ToolSource
	newAdapter AdapterFactory
	summarizer conversation.Summarizer

	maxSessions int
	ttl         time.Duration
	sweepEvery  time.Duration

	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

type sessionManagerConfig struct {
	state      *state.Manager
	store      storage.SessionStore
	bus        *events.Bus
	prompts    PromptBuilder
	tools      ToolSource
	newAdapter AdapterFactory
	summarizer conversation.Summarizer
	sessions   config.SessionsConfig
	sweepEvery time.Duration
	logger     *zap.Logger
}

func newSessionManager(cfg sessionManagerConfig) *SessionManager {
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.sweepEvery <= 0 {
		cfg.sweepEvery = defaultSweepInterval
	}
	maxSessions := cfg.sessions.MaxSessions
	if maxSessions <= 0 {
		maxSessions = config.DefaultMaxSessions
	}
	ttl := cfg.sessions.SessionTTL.Std()
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL.Std()
	}
	return &SessionManager{
		sessions:    make(map[string]*ChatSession),
		state:       cfg.state,
		store:       cfg.store,
		bus:         cfg.bus,
		prompts:     cfg.prompts,
		tools:       cfg.tools,
		newAdapter:  cfg.newAdapter,
		summarizer:  cfg.summarizer,
		maxSessions: maxSessions,
		ttl:         ttl,
		sweepEvery:  cfg.sweepEvery,
		logger:      cfg.logger,
	}
}

// Start launches the background expiry loop.
func (m *SessionManager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.sweepLoop(ctx)
}

func (m *SessionManager) sweepLoop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireIdle(ctx)
		}
	}
}

// expireIdle ends every session idle past the TTL. History is kept.
func (m *SessionManager) expireIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*ChatSession
	for id, sess := range m.sessions {
		if sess.lastActive().Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		m.flush(ctx, sess)
		m.logger.Info("session expired", zap.String("session", sess.ID()))
	}
}

// Create returns the live session for id, rehydrates a persisted one, or
// creates a fresh session. An empty id gets a random UUID.
func (m *SessionManager) Create(ctx context.Context, id string) (*ChatSession, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		sess.touch()
		return sess, nil
	}
	return m.materializeLocked(ctx, id)
}

// Get returns the live session or rehydrates it from the store.
func (m *SessionManager) Get(ctx context.Context, id string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	if _, err := m.store.LoadMetadata(ctx, id); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, &SessionNotFoundError{ID: id}
		}
		return nil, err
	}
	return m.materializeLocked(ctx, id)
}

// materializeLocked builds the in-memory session for id, restoring any
// persisted state. Caller holds the manager mutex; concurrent creates for
// the same id therefore resolve to one instance.
func (m *SessionManager) materializeLocked(ctx context.Context, id string) (*ChatSession, error) {
	if len(m.sessions) >= m.maxSessions {
		m.evictLRULocked(ctx)
	}

	llmCfg := m.state.EffectiveLLM(id)
	adapter, err := m.newAdapter(llmCfg, m.logger)
	if err != nil {
		return nil, err
	}

	conv := conversation.NewManager(
		conversation.WithMaxInputTokens(config.ResolveMaxInputTokens(llmCfg)),
		conversation.WithSummarizer(m.summarizer),
		conversation.WithLogger(m.logger),
	)

	sess := &ChatSession{
		id:           id,
		createdAt:    time.Now(),
		adapter:      adapter,
		llmCfg:       llmCfg.Clone(),
		conv:         conv,
		lastActivity: time.Now(),
		provider:     llmCfg.Provider,
		model:        llmCfg.Model,
		emitter:      events.NewEmitter(m.bus, id),
		prompts:      m.prompts,
		tools:        m.tools,
		store:        m.store,
		retry:        llm.RetryConfig{Logger: m.logger},
		logger:       m.logger.With(zap.String("session", id)),
	}

	meta, err := m.store.LoadMetadata(ctx, id)
	switch {
	case err == nil:
		history, herr := m.store.LoadHistory(ctx, id)
		if herr != nil {
			return nil, herr
		}
		if rerr := conv.Restore(history); rerr != nil {
			return nil, rerr
		}
		sess.createdAt = meta.CreatedAt
		sess.messageCount = meta.MessageCount
		sess.usage = meta.Usage
	case errors.Is(err, storage.ErrSessionNotFound):
		if serr := m.store.SaveMetadata(ctx, sess.Metadata()); serr != nil {
			return nil, serr
		}
	default:
		return nil, err
	}

	m.sessions[id] = sess
	m.logger.Debug("session materialized", zap.String("session", id))
	return sess, nil
}

// evictLRULocked drops the least recently used session from memory, saving
// its metadata first. Caller holds the manager mutex.
func (m *SessionManager) evictLRULocked(ctx context.Context) {
	var victim *ChatSession
	for _, sess := range m.sessions {
		if victim == nil || sess.lastActive().Before(victim.lastActive()) {
			victim = sess
		}
	}
	if victim == nil {
		return
	}
	delete(m.sessions, victim.ID())
	m.flush(ctx, victim)
	m.logger.Info("session evicted", zap.String("session", victim.ID()))
}

// End drops a session from memory. Its history stays in the store.
func (m *SessionManager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		if _, err := m.store.LoadMetadata(ctx, id); errors.Is(err, storage.ErrSessionNotFound) {
			return &SessionNotFoundError{ID: id}
		}
		return nil
	}
	m.flush(ctx, sess)
	return nil
}

// Delete drops a session from memory and purges its persisted state.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	m.state.ClearSession(id)
	err := m.store.DeleteSession(ctx, id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		if live {
			return nil
		}
		return &SessionNotFoundError{ID: id}
	}
	return err
}

// Reset truncates a session's conversation, keeping the session alive.
func (m *SessionManager) Reset(ctx context.Context, id string) error {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return sess.Reset(ctx)
}

// Metadata returns a session's metadata, preferring the live view.
func (m *SessionManager) Metadata(ctx context.Context, id string) (*storage.SessionMetadata, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		return sess.Metadata(), nil
	}
	meta, err := m.store.LoadMetadata(ctx, id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, &SessionNotFoundError{ID: id}
	}
	return meta, err
}

// List returns metadata for every known session, live and persisted,
// sorted by id.
func (m *SessionManager) List(ctx context.Context) ([]*storage.SessionMetadata, error) {
	ids, err := m.store.ListSessionIDs(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	live := make(map[string]*ChatSession, len(m.sessions))
	for id, sess := range m.sessions {
		live[id] = sess
	}
	m.mu.Unlock()

	seen := make(map[string]bool, len(ids))
	out := make([]*storage.SessionMetadata, 0, len(ids))
	for _, id := range ids {
		seen[id] = true
		if sess, ok := live[id]; ok {
			out = append(out, sess.Metadata())
			continue
		}
		meta, err := m.store.LoadMetadata(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	for id, sess := range live {
		if !seen[id] {
			out = append(out, sess.Metadata())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SwitchLLM applies a resolved LLM config to the named live sessions,
// building a fresh adapter per session and preserving each conversation.
func (m *SessionManager) SwitchLLM(cfg config.LLMConfig, ids ...string) error {
	for _, id := range ids {
		m.mu.Lock()
		sess, ok := m.sessions[id]
		m.mu.Unlock()
		if !ok {
			// Not live: the overlay takes effect when the session is next
			// materialized.
			continue
		}
		adapter, err := m.newAdapter(cfg, m.logger)
		if err != nil {
			return err
		}
		sess.SwapAdapter(adapter, cfg)
	}
	return nil
}

// SwitchLLMAll applies a resolved LLM config to every live session.
func (m *SessionManager) SwitchLLMAll(cfg config.LLMConfig) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return m.SwitchLLM(cfg, ids...)
}

// LiveCount reports the number of in-memory sessions.
func (m *SessionManager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close cancels the expiry loop and flushes every live session's metadata.
func (m *SessionManager) Close(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*ChatSession)
	m.mu.Unlock()

	for _, sess := range sessions {
		m.flush(ctx, sess)
	}
	return nil
}

// flush writes a session's metadata through to the store.
func (m *SessionManager) flush(ctx context.Context, sess *ChatSession) {
	if err := m.store.SaveMetadata(ctx, sess.Metadata()); err != nil {
		m.logger.Warn("flushing session metadata failed",
			zap.String("session", sess.ID()), zap.Error(err))
	}
}
