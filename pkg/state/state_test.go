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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/warp/pkg/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "sk-base",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestEffectiveLLMWithoutOverlays(t *testing.T) {
	m := NewManager(baseConfig(), nil)
	llm := m.EffectiveLLM("s1")
	assert.Equal(t, "gpt-4o-mini", llm.Model)
	assert.Equal(t, config.RouterUnified, llm.Router)
}

func TestSessionOverlayShadowsBase(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	updated, warnings, err := m.UpdateLLM("s1", config.LLMConfig{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "gpt-4o", updated.Model)
	assert.Equal(t, "sk-base", updated.APIKey)

	assert.Equal(t, "gpt-4o", m.EffectiveLLM("s1").Model)
	assert.Equal(t, "gpt-4o-mini", m.EffectiveLLM("s2").Model)
}

func TestSwitchProviderByModel(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	updated, _, err := m.UpdateLLM("s1", config.LLMConfig{
		Model:  "claude-4-sonnet",
		APIKey: "sk-ant",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", updated.Provider)
	assert.Equal(t, config.RouterInBuilt, updated.Router)
}

func TestGlobalUpdateClearsSessionOverlays(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	_, _, err := m.UpdateLLM("s1", config.LLMConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	_, _, err = m.UpdateLLM(GlobalScope, config.LLMConfig{Model: "gpt-4-turbo"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", m.EffectiveLLM("s1").Model)
	assert.Equal(t, "gpt-4-turbo", m.EffectiveLLM("s2").Model)
	assert.Empty(t, m.SessionOverlays())
}

func TestInvalidUpdateLeavesStateUntouched(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	_, _, err := m.UpdateLLM("s1", config.LLMConfig{Provider: "acme"})
	require.Error(t, err)
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, "gpt-4o-mini", m.EffectiveLLM("s1").Model)
	assert.Empty(t, m.SessionOverlays())
}

func TestClearSession(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	_, _, err := m.UpdateLLM("s1", config.LLMConfig{Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, m.SessionOverlays())

	m.ClearSession("s1")
	assert.Equal(t, "gpt-4o-mini", m.EffectiveLLM("s1").Model)
	assert.Empty(t, m.SessionOverlays())
}

func TestAddMcpServer(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	entry, err := m.AddMcpServer("files", config.McpServerConfig{
		Type:    config.TransportStdio,
		Command: "mcp-files",
	})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMCPTimeout, entry.Timeout)
	assert.Equal(t, config.ConnectionLenient, entry.ConnectionMode)

	// Re-adding an existing name replaces the entry.
	replaced, err := m.AddMcpServer("files", config.McpServerConfig{
		Type:    config.TransportStdio,
		Command: "other",
	})
	require.NoError(t, err)
	assert.Equal(t, "other", replaced.Command)
	assert.Equal(t, "other", m.McpServers()["files"].Command)

	_, err = m.AddMcpServer("bad", config.McpServerConfig{Type: config.TransportSSE})
	require.Error(t, err)

	assert.True(t, m.RemoveMcpServer("files"))
	assert.False(t, m.RemoveMcpServer("files"))
}

func TestBaseIsDefensivelyCopied(t *testing.T) {
	base := baseConfig()
	m := NewManager(base, nil)

	base.LLM.Model = "mutated"
	assert.Equal(t, "gpt-4o-mini", m.EffectiveLLM("s1").Model)

	snapshot := m.Base()
	snapshot.LLM.Model = "mutated-again"
	assert.Equal(t, "gpt-4o-mini", m.EffectiveLLM("s1").Model)
}

func TestExportMasksSecrets(t *testing.T) {
	m := NewManager(baseConfig(), nil)

	masked, err := m.Export(false)
	require.NoError(t, err)
	assert.NotContains(t, string(masked), "sk-base")
	assert.Contains(t, string(masked), config.MaskedSecret)

	full, err := m.Export(true)
	require.NoError(t, err)
	assert.Contains(t, string(full), "sk-base")
}
