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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		SystemPrompt: SystemPromptConfig{Raw: "You are a helpful agent."},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "sk-test",
		},
		McpServers: map[string]McpServerConfig{
			"files": {
				Type:    TransportStdio,
				Command: "mcp-files",
				Args:    []string{"--root", "/tmp"},
			},
		},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := validConfig()
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, RouterUnified, cfg.LLM.Router)
	assert.Equal(t, DefaultMaxIterations, cfg.LLM.MaxIterations)
	assert.Equal(t, DefaultMaxSessions, cfg.Sessions.MaxSessions)
	assert.Equal(t, DefaultSessionTTL, cfg.Sessions.SessionTTL)
	assert.Equal(t, "in-memory", cfg.Storage.Database.Type)
	assert.Equal(t, DefaultMCPTimeout, cfg.McpServers["files"].Timeout)
	assert.Equal(t, ConnectionLenient, cfg.McpServers["files"].ConnectionMode)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Provider = "acme"

	_, err := cfg.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Issues)
	assert.Equal(t, "llm.provider", verr.Issues[0].Code)
}

func TestValidateRejectsIncompatibleModel(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Model = "claude-4-sonnet"

	_, err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateBaseURLOnlyForOpenAICompatible(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.BaseURL = "http://localhost:8080/v1"
	_, err := cfg.Validate()
	require.Error(t, err)

	cfg = validConfig()
	cfg.LLM = LLMConfig{
		Provider: "openai-compatible",
		Model:    "local-model",
		BaseURL:  "http://localhost:8080/v1",
	}
	_, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, RouterInBuilt, cfg.LLM.Router)
}

func TestValidateTemperatureRange(t *testing.T) {
	cfg := validConfig()
	temp := 1.5
	cfg.LLM.Temperature = &temp
	_, err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateLLMFillsDefaultModel(t *testing.T) {
	llm := LLMConfig{Provider: "anthropic", APIKey: "sk-ant"}
	_, err := ValidateLLM(&llm)
	require.NoError(t, err)
	assert.Equal(t, "claude-4-sonnet", llm.Model)
	assert.Equal(t, RouterInBuilt, llm.Router)
}

func TestVercelRouterIsNormalized(t *testing.T) {
	llm := LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk", Router: "vercel"}
	_, err := ValidateLLM(&llm)
	require.NoError(t, err)
	assert.Equal(t, RouterUnified, llm.Router)
}

func TestValidateMcpServerTransports(t *testing.T) {
	tests := []struct {
		name    string
		cfg     McpServerConfig
		wantErr bool
	}{
		{"stdio ok", McpServerConfig{Type: TransportStdio, Command: "srv"}, false},
		{"stdio missing command", McpServerConfig{Type: TransportStdio}, true},
		{"sse ok", McpServerConfig{Type: TransportSSE, URL: "http://localhost:3001"}, false},
		{"sse missing url", McpServerConfig{Type: TransportSSE}, true},
		{"http ok", McpServerConfig{Type: TransportHTTP, URL: "http://localhost:3001/mcp"}, false},
		{"unknown type", McpServerConfig{Type: "grpc", URL: "x"}, true},
		{"mixed fields", McpServerConfig{Type: TransportHTTP, URL: "http://x", Command: "srv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tt.cfg
			err := ValidateMcpServer("s", &entry)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, DefaultMCPTimeout, entry.Timeout)
			}
		})
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model    string
		provider string
	}{
		{"gpt-4o-mini", "openai"},
		{"gpt-4-turbo", "openai"},
		{"o3-mini", "openai"},
		{"claude-4-sonnet", "anthropic"},
		{"claude-3-5-haiku-latest", "anthropic"},
		{"gemini-2.0-flash", "gemini"},
		{"deepseek-chat", "deepseek"},
		{"mistral-large-latest", "mistral"},
	}
	for _, tt := range tests {
		provider, ok := InferProvider(tt.model)
		require.True(t, ok, tt.model)
		assert.Equal(t, tt.provider, provider, tt.model)
	}

	_, ok := InferProvider("totally-unknown-model")
	assert.False(t, ok)
}

func TestResolveMaxInputTokens(t *testing.T) {
	assert.Equal(t, 500, ResolveMaxInputTokens(LLMConfig{Provider: "openai", Model: "gpt-4o", MaxInputTokens: 500}))
	assert.Equal(t, 128_000, ResolveMaxInputTokens(LLMConfig{Provider: "openai", Model: "gpt-4o"}))
	assert.Equal(t, 200_000, ResolveMaxInputTokens(LLMConfig{Provider: "anthropic", Model: "claude-4-sonnet"}))
	assert.Equal(t, 32_768, ResolveMaxInputTokens(LLMConfig{Provider: "openai-compatible", Model: "whatever"}))
}

func TestMergeOverlayWins(t *testing.T) {
	base := LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk", MaxIterations: 50}
	temp := 0.2
	merged := base.Merge(LLMConfig{Model: "gpt-4o", Temperature: &temp})

	assert.Equal(t, "gpt-4o", merged.Model)
	assert.Equal(t, "openai", merged.Provider)
	assert.Equal(t, "sk", merged.APIKey)
	assert.Equal(t, 50, merged.MaxIterations)
	require.NotNil(t, merged.Temperature)
	assert.Equal(t, 0.2, *merged.Temperature)

	// The merged copy must not alias the overlay's pointer.
	temp = 0.9
	assert.Equal(t, 0.2, *merged.Temperature)
}

func TestRoundTripPreservesConfig(t *testing.T) {
	cfg := validConfig()
	temp := 0.7
	cfg.LLM.Temperature = &temp
	cfg.McpServers["web"] = McpServerConfig{
		Type:    TransportSSE,
		URL:     "http://localhost:3001",
		Headers: map[string]string{"Authorization": "Bearer tok", "X-Env": "dev"},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	data, err := Serialize(cfg, false)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, *cfg, *parsed)
}

func TestSerializeMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.McpServers["web"] = McpServerConfig{
		Type:    TransportHTTP,
		URL:     "http://localhost:3001/mcp",
		Headers: map[string]string{"Authorization": "Bearer tok", "X-Env": "dev"},
	}
	cfg.Storage.Database = StorageBackendConfig{Type: "postgres", DSN: "postgres://u:pw@db/warp"}

	data, err := Serialize(cfg, true)
	require.NoError(t, err)
	text := string(data)

	assert.NotContains(t, text, "sk-test")
	assert.NotContains(t, text, "Bearer tok")
	assert.NotContains(t, text, "u:pw")
	assert.Contains(t, text, MaskedSecret)
	assert.Contains(t, text, "X-Env: dev")

	// Masking must not touch the original.
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "Bearer tok", cfg.McpServers["web"].Headers["Authorization"])
}

func TestSystemPromptStringOrContributors(t *testing.T) {
	cfg, err := Parse([]byte("systemPrompt: plain text\nllm:\n  provider: openai\n  model: gpt-4o\n"))
	require.NoError(t, err)
	assert.Equal(t, "plain text", cfg.SystemPrompt.Raw)
	require.Len(t, cfg.SystemPrompt.Effective(), 1)
	assert.Equal(t, "static", cfg.SystemPrompt.Effective()[0].Type)

	cfg, err = Parse([]byte(`
systemPrompt:
  contributors:
    - id: base
      type: static
      priority: 0
      content: hello
    - id: clock
      type: dynamic
      priority: 10
      source: dateTime
llm:
  provider: openai
  model: gpt-4o
`))
	require.NoError(t, err)
	require.Len(t, cfg.SystemPrompt.Contributors, 2)
	assert.Equal(t, "dateTime", cfg.SystemPrompt.Contributors[1].Source)
}

func TestContributorStrictFields(t *testing.T) {
	cfg := validConfig()
	cfg.SystemPrompt = SystemPromptConfig{Contributors: []ContributorConfig{
		{ID: "bad", Type: "static", Content: "x", Source: "dateTime"},
	}}
	_, err := cfg.Validate()
	require.Error(t, err)

	cfg.SystemPrompt = SystemPromptConfig{Contributors: []ContributorConfig{
		{ID: "bad", Type: "dynamic"},
	}}
	_, err = cfg.Validate()
	require.Error(t, err)
}

func TestDurationAcceptsMillisecondsAndStrings(t *testing.T) {
	cfg, err := Parse([]byte("llm:\n  provider: openai\n  model: gpt-4o\nsessions:\n  sessionTTL: 3600000\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Sessions.SessionTTL.Std())

	cfg, err = Parse([]byte("llm:\n  provider: openai\n  model: gpt-4o\nsessions:\n  sessionTTL: 90s\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Sessions.SessionTTL.Std())
}
