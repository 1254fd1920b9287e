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

// Package state tracks the agent's runtime configuration: the immutable
// baseline loaded at startup plus scoped LLM overlays applied by switches at
// runtime. Readers always get defensive copies.
package state

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
)

// GlobalScope applies an update to every session, current and future.
const GlobalScope = "*"

// Manager owns the runtime view of the configuration. The effective LLM
// config for a session is the baseline merged with the global overlay and
// then the session overlay, in that order.
type Manager struct {
	mu       sync.RWMutex
	base     config.Config
	global   *config.LLMConfig
	sessions map[string]config.LLMConfig
	logger   *zap.Logger
}

// NewManager copies the baseline config and starts with no overlays.
func NewManager(base *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		base:     base.Clone(),
		sessions: make(map[string]config.LLMConfig),
		logger:   logger,
	}
}

// Base returns a copy of the baseline configuration.
func (m *Manager) Base() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base.Clone()
}

// Effective returns the current global configuration: the baseline with the
// global LLM overlay folded in.
func (m *Manager) Effective() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.base.Clone()
	if m.global != nil {
		out.LLM = *m.global
	}
	return out
}

// EffectiveLLM resolves the LLM configuration a session runs with.
func (m *Manager) EffectiveLLM(sessionID string) config.LLMConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effectiveLLMLocked(sessionID)
}

func (m *Manager) effectiveLLMLocked(sessionID string) config.LLMConfig {
	out := m.base.LLM
	if m.global != nil {
		out = *m.global
	}
	if sessionID != "" && sessionID != GlobalScope {
		if overlay, ok := m.sessions[sessionID]; ok {
			out = overlay
		}
	}
	return out.Clone()
}

// UpdateLLM merges a partial update over the scope's current effective LLM
// config, validates the result, and stores it. Unset overlay fields keep
// their current values. Scope is a session ID or GlobalScope; a global
// update discards per-session overlays so it really applies everywhere.
// Returns the stored config and any validation warnings.
func (m *Manager) UpdateLLM(scope string, overlay config.LLMConfig) (config.LLMConfig, []config.Issue, error) {
	if scope == "" {
		return config.LLMConfig{}, nil, fmt.Errorf("empty scope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.effectiveLLMLocked(scope)
	candidate := current.Merge(overlay)

	// A model change without an explicit provider re-infers the provider
	// and clears stale routing from the previous selection.
	if overlay.Model != "" && overlay.Provider == "" {
		if provider, ok := config.InferProvider(overlay.Model); ok && provider != current.Provider {
			candidate.Provider = provider
			if overlay.Router == "" {
				candidate.Router = config.DefaultRouter(provider)
			}
			if overlay.MaxInputTokens == 0 {
				candidate.MaxInputTokens = 0
			}
		}
	}

	warnings, err := config.ValidateLLM(&candidate)
	if err != nil {
		return config.LLMConfig{}, warnings, err
	}

	if scope == GlobalScope {
		stored := candidate.Clone()
		m.global = &stored
		m.sessions = make(map[string]config.LLMConfig)
	} else {
		m.sessions[scope] = candidate.Clone()
	}

	m.logger.Info("LLM configuration updated",
		zap.String("scope", scope),
		zap.String("provider", candidate.Provider),
		zap.String("model", candidate.Model),
		zap.String("router", string(candidate.Router)))
	return candidate, warnings, nil
}

// ClearSession drops a session's overlay. Called when the session is
// deleted or evicted.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// AddMcpServer validates and records a server entry in the runtime config.
// Re-adding an existing name replaces its entry. Connecting is the MCP
// manager's job.
func (m *Manager) AddMcpServer(name string, srv config.McpServerConfig) (config.McpServerConfig, error) {
	if name == "" {
		return config.McpServerConfig{}, fmt.Errorf("empty MCP server name")
	}
	entry := srv.Clone()
	if err := config.ValidateMcpServer(name, &entry); err != nil {
		return config.McpServerConfig{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base.McpServers == nil {
		m.base.McpServers = make(map[string]config.McpServerConfig)
	}
	m.base.McpServers[name] = entry
	return entry.Clone(), nil
}

// RemoveMcpServer drops a server entry. Returns false when it was not
// configured.
func (m *Manager) RemoveMcpServer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.base.McpServers[name]; !ok {
		return false
	}
	delete(m.base.McpServers, name)
	return true
}

// McpServers returns a copy of the configured server entries.
func (m *Manager) McpServers() map[string]config.McpServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]config.McpServerConfig, len(m.base.McpServers))
	for name, srv := range m.base.McpServers {
		out[name] = srv.Clone()
	}
	return out
}

// SessionOverlays lists session IDs with an active overlay, sorted.
func (m *Manager) SessionOverlays() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Export serializes the effective global configuration. Secrets are masked
// unless includeSecrets is set.
func (m *Manager) Export(includeSecrets bool) ([]byte, error) {
	effective := m.Effective()
	return config.Serialize(&effective, !includeSecrets)
}
