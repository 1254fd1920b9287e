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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/events"
	"github.com/teradata-labs/warp/pkg/mcp"
	"github.com/teradata-labs/warp/pkg/mcp/protocol"
	"github.com/teradata-labs/warp/pkg/state"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/tools"
)

// stubConn is a minimal scripted MCP connection.
type stubConn struct {
	tools  []protocol.Tool
	calls  []string
	closed bool
}

func (c *stubConn) ListTools(context.Context) ([]protocol.Tool, error) { return c.tools, nil }

func (c *stubConn) CallTool(_ context.Context, name string, _ map[string]interface{}) (*protocol.CallToolResult, error) {
	c.calls = append(c.calls, name)
	return &protocol.CallToolResult{Content: []protocol.Content{
		{Type: "text", Text: "result from " + name},
	}}, nil
}

func (c *stubConn) ListResources(context.Context) ([]protocol.Resource, error) { return nil, nil }

func (c *stubConn) ReadResource(context.Context, string) (*protocol.ReadResourceResult, error) {
	return nil, fmt.Errorf("no resources")
}

func (c *stubConn) Ping(context.Context) error { return nil }
func (c *stubConn) Close() error               { c.closed = true; return nil }

func stubDialer(conns map[string]*stubConn) mcp.Dialer {
	return func(_ context.Context, name string, _ config.McpServerConfig, _ *zap.Logger) (mcp.Conn, error) {
		if conn, ok := conns[name]; ok {
			return conn, nil
		}
		return nil, fmt.Errorf("connection refused")
	}
}

func baseConfig() *config.Config {
	return &config.Config{
		LLM: testLLMConfig(),
		Sessions: config.SessionsConfig{
			MaxSessions: 10,
			SessionTTL:  config.Duration(time.Hour),
		},
	}
}

// newTestAgent builds and starts an agent against in-memory collaborators.
func newTestAgent(t *testing.T, cfg *config.Config, conns map[string]*stubConn) (*Agent, *echoFactory) {
	t.Helper()
	if cfg == nil {
		cfg = baseConfig()
	}
	factory := &echoFactory{}
	a, err := New(cfg,
		WithStore(storage.NewMemoryStore()),
		WithMcpDialer(stubDialer(conns)),
		WithAdapterFactory(factory.build),
	)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a, factory
}

func TestLifecycleGuards(t *testing.T) {
	ctx := context.Background()
	a, err := New(baseConfig(), WithStore(storage.NewMemoryStore()))
	require.NoError(t, err)

	_, err = a.Run(ctx, Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, a.Stop(ctx), ErrNotStarted)

	require.NoError(t, a.Start(ctx))
	assert.ErrorIs(t, a.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, a.Stop(ctx))
	assert.ErrorIs(t, a.Stop(ctx), ErrStopped)
	assert.ErrorIs(t, a.Start(ctx), ErrStopped)
	_, err = a.Run(ctx, Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.LLM.Provider = "no-such-provider"
	_, err := New(cfg, WithStore(storage.NewMemoryStore()))
	require.Error(t, err)
}

func TestRunRoutesToDefaultSession(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	out, err := a.Run(ctx, Input{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, DefaultSessionID, a.CurrentSessionID())

	history, err := a.SessionHistory(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRunRoutesToNamedSession(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "hello", SessionID: "work"})
	require.NoError(t, err)

	history, err := a.SessionHistory(ctx, "work")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// The default session never saw the turn.
	assert.Equal(t, DefaultSessionID, a.CurrentSessionID())
	_, err = a.SessionHistory(ctx, DefaultSessionID)
	var nf *SessionNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStartLenientMcpFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.McpServers = map[string]config.McpServerConfig{
		"good": {Type: config.TransportStdio, Command: "srv", ConnectionMode: config.ConnectionLenient},
		"bad":  {Type: config.TransportStdio, Command: "srv", ConnectionMode: config.ConnectionLenient},
	}
	conns := map[string]*stubConn{
		"good": {tools: []protocol.Tool{{Name: "search"}}},
	}
	a, _ := newTestAgent(t, cfg, conns)

	failed, err := a.McpFailedConnections()
	require.NoError(t, err)
	assert.Contains(t, failed, "bad")

	mcpTools, err := a.McpTools()
	require.NoError(t, err)
	require.Len(t, mcpTools, 1)
	assert.Equal(t, "search", mcpTools[0].Name)
	assert.Equal(t, "good", mcpTools[0].Server)
}

func TestStartStrictMcpFailureAborts(t *testing.T) {
	cfg := baseConfig()
	cfg.McpServers = map[string]config.McpServerConfig{
		"critical": {Type: config.TransportStdio, Command: "srv", ConnectionMode: config.ConnectionStrict},
	}
	a, err := New(cfg,
		WithStore(storage.NewMemoryStore()),
		WithMcpDialer(stubDialer(nil)),
	)
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.Error(t, err)
	var strict *mcp.StrictConnectionError
	require.ErrorAs(t, err, &strict)
	assert.Equal(t, "critical", strict.Server)
}

func TestSwitchLLMOnCurrentSession(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "before"})
	require.NoError(t, err)

	warnings, err := a.SwitchLLM(ctx, config.LLMConfig{Model: "claude-4-sonnet", APIKey: "k"}, "")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	meta, err := a.GetSessionMetadata(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", meta.Provider)
	assert.Equal(t, "claude-4-sonnet", meta.Model)

	// The conversation survived the switch.
	history, err := a.SessionHistory(ctx, DefaultSessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "before", history[0].Content)

	_, err = a.Run(ctx, Input{Text: "after"})
	require.NoError(t, err)
	history, err = a.SessionHistory(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSwitchLLMGlobalScope(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "a", SessionID: "a"})
	require.NoError(t, err)
	_, err = a.Run(ctx, Input{Text: "b", SessionID: "b"})
	require.NoError(t, err)

	_, err = a.SwitchLLM(ctx, config.LLMConfig{Model: "claude-4-sonnet", APIKey: "k"}, state.GlobalScope)
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		meta, err := a.GetSessionMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "claude-4-sonnet", meta.Model, "session %s", id)
	}

	effective, err := a.EffectiveConfig()
	require.NoError(t, err)
	assert.Equal(t, "claude-4-sonnet", effective.LLM.Model)
}

func TestSwitchLLMInvalidModel(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)

	_, err := a.SwitchLLM(context.Background(), config.LLMConfig{Provider: "no-such"}, "")
	require.Error(t, err)
}

func TestRegisterAndExecuteCustomTool(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()
	sub := a.Events().Subscribe(ctx, 16, events.TopicToolsUpdated)

	tool := tools.NewTool("time_now", "reports the current time", nil,
		func(context.Context, map[string]interface{}) (interface{}, error) {
			return "2026-08-25", nil
		})
	require.NoError(t, a.RegisterTool(tool))

	all, err := a.AllTools()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "time_now", all[0].Name)

	out, err := a.ExecuteTool(ctx, "time_now", nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-25", out)

	evs := drainEvents(sub)
	require.Len(t, evs, 1)
	payload := evs[0].Payload.(events.ToolsUpdated)
	assert.Equal(t, "custom", payload.Source)
	assert.Equal(t, []string{"time_now"}, payload.Tools)

	require.NoError(t, a.UnregisterTool("time_now"))
	all, err = a.AllTools()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCustomToolShadowsMcpTool(t *testing.T) {
	cfg := baseConfig()
	cfg.McpServers = map[string]config.McpServerConfig{
		"srv": {Type: config.TransportStdio, Command: "srv", ConnectionMode: config.ConnectionLenient},
	}
	conns := map[string]*stubConn{
		"srv": {tools: []protocol.Tool{{Name: "search"}}},
	}
	a, _ := newTestAgent(t, cfg, conns)
	ctx := context.Background()

	custom := tools.NewTool("search", "local search", nil,
		func(context.Context, map[string]interface{}) (interface{}, error) {
			return "local result", nil
		})
	require.NoError(t, a.RegisterTool(custom))

	all, err := a.AllTools()
	require.NoError(t, err)
	require.Len(t, all, 1)

	out, err := a.ExecuteTool(ctx, "search", nil)
	require.NoError(t, err)
	assert.Equal(t, "local result", out)
	assert.Empty(t, conns["srv"].calls)
}

func TestExecuteUnknownTool(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)

	_, err := a.ExecuteTool(context.Background(), "missing", nil)
	var nf *ToolNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestConnectMcpServerAtRuntime(t *testing.T) {
	conns := map[string]*stubConn{
		"late": {tools: []protocol.Tool{{Name: "fetch"}}},
	}
	a, _ := newTestAgent(t, nil, conns)
	ctx := context.Background()

	err := a.ConnectMcpServer(ctx, "late", config.McpServerConfig{
		Type:    config.TransportStdio,
		Command: "srv",
	})
	require.NoError(t, err)

	mcpTools, err := a.McpTools()
	require.NoError(t, err)
	require.Len(t, mcpTools, 1)
	assert.Equal(t, "fetch", mcpTools[0].Name)

	out, err := a.ExecuteTool(ctx, "fetch", map[string]interface{}{"url": "x"})
	require.NoError(t, err)
	assert.Equal(t, "result from fetch", out)

	require.NoError(t, a.RemoveMcpServer(ctx, "late"))
	servers, err := a.McpServers()
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestConnectMcpServerReplacesExisting(t *testing.T) {
	cfg := baseConfig()
	cfg.McpServers = map[string]config.McpServerConfig{
		"files": {Type: config.TransportStdio, Command: "srv-v1", ConnectionMode: config.ConnectionLenient},
	}
	oldConn := &stubConn{tools: []protocol.Tool{{Name: "read_file"}}}
	conns := map[string]*stubConn{"files": oldConn}
	a, _ := newTestAgent(t, cfg, conns)
	ctx := context.Background()

	newConn := &stubConn{tools: []protocol.Tool{{Name: "read_file"}, {Name: "write_file"}}}
	conns["files"] = newConn
	err := a.ConnectMcpServer(ctx, "files", config.McpServerConfig{
		Type:    config.TransportStdio,
		Command: "srv-v2",
	})
	require.NoError(t, err)

	assert.True(t, oldConn.closed)
	servers, err := a.McpServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "files", servers[0].Name)

	effective, err := a.EffectiveConfig()
	require.NoError(t, err)
	assert.Equal(t, "srv-v2", effective.McpServers["files"].Command)

	out, err := a.ExecuteTool(ctx, "write_file", nil)
	require.NoError(t, err)
	assert.Equal(t, "result from write_file", out)
	assert.Empty(t, oldConn.calls)
}

func TestConnectMcpServerStrictRollback(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)

	err := a.ConnectMcpServer(context.Background(), "flaky", config.McpServerConfig{
		Type:           config.TransportStdio,
		Command:        "srv",
		ConnectionMode: config.ConnectionStrict,
	})
	require.Error(t, err)

	effective, err := a.EffectiveConfig()
	require.NoError(t, err)
	assert.NotContains(t, effective.McpServers, "flaky")
}

func TestResetConversation(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()
	sub := a.Events().Subscribe(ctx, 16, events.TopicConversationReset)

	_, err := a.Run(ctx, Input{Text: "hello"})
	require.NoError(t, err)

	require.NoError(t, a.ResetConversation(ctx, ""))
	history, err := a.SessionHistory(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Len(t, drainEvents(sub), 1)
}

func TestDeleteSessionResetsCurrent(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, a.LoadSession(ctx, "scratch"))
	assert.Equal(t, "scratch", a.CurrentSessionID())

	require.NoError(t, a.DeleteSession(ctx, "scratch"))
	assert.Equal(t, DefaultSessionID, a.CurrentSessionID())
}

func TestEndSessionKeepsHistory(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "persist me", SessionID: "s"})
	require.NoError(t, err)
	require.NoError(t, a.EndSession(ctx, "s"))

	history, err := a.SessionHistory(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "persist me", history[0].Content)
}

func TestListSessions(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "x", SessionID: "a"})
	require.NoError(t, err)
	_, err = a.Run(ctx, Input{Text: "y", SessionID: "b"})
	require.NoError(t, err)

	list, err := a.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestSearchMessagesFallbackScan(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Input{Text: "the quick brown fox", SessionID: "a"})
	require.NoError(t, err)
	_, err = a.Run(ctx, Input{Text: "lazy dog", SessionID: "b"})
	require.NoError(t, err)

	hits, err := a.SearchMessages(ctx, "quick brown", storage.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a", hits[0].SessionID)

	sessions, err := a.SearchSessions(ctx, "lazy")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].SessionID)
}

func TestSystemPromptAvailable(t *testing.T) {
	cfg := baseConfig()
	cfg.SystemPrompt.Raw = "You are a careful assistant."
	a, _ := newTestAgent(t, cfg, nil)

	prompt, err := a.SystemPrompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You are a careful assistant.", prompt)
}

func TestExportConfigMasksSecrets(t *testing.T) {
	a, _ := newTestAgent(t, nil, nil)

	out, err := a.ExportConfig(false)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "test-key")

	out, err = a.ExportConfig(true)
	require.NoError(t, err)
	assert.Contains(t, string(out), "test-key")
}
