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

// Package mcp aggregates tools and resources from multiple MCP servers
// behind one manager. Connections are established per the configured
// transport, tool names are deduplicated deterministically, and tool calls
// are routed to the owning server.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/events"
	"github.com/teradata-labs/warp/pkg/mcp/client"
	"github.com/teradata-labs/warp/pkg/mcp/protocol"
	"github.com/teradata-labs/warp/pkg/mcp/transport"
	"github.com/teradata-labs/warp/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StrictConnectionError reports a strict-mode server that failed to connect
// during ConnectAll, aborting startup.
type StrictConnectionError struct {
	Server string
	Err    error
}

func (e *StrictConnectionError) Error() string {
	return fmt.Sprintf("server %s (strict): %v", e.Server, e.Err)
}

func (e *StrictConnectionError) Unwrap() error { return e.Err }

// ToolNotFoundError reports a tool name absent from the aggregated set.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ExecutionError reports a tool call that failed on its owning server.
type ExecutionError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s on server %s: %v", e.Tool, e.Server, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Conn is the per-server connection surface the manager needs. It is
// satisfied by *client.Client and by test doubles.
type Conn interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)
	ListResources(ctx context.Context) ([]protocol.Resource, error)
	ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Dialer connects and initializes one server.
type Dialer func(ctx context.Context, name string, cfg config.McpServerConfig, logger *zap.Logger) (Conn, error)

// toolEntry records which server owns an aggregated tool name.
type toolEntry struct {
	server string
	tool   protocol.Tool
}

// Manager owns the MCP server connections of one agent.
type Manager struct {
	logger     *zap.Logger
	bus        *events.Bus
	dial       Dialer
	clientInfo protocol.Implementation

	mu      sync.RWMutex
	conns   map[string]Conn
	configs map[string]config.McpServerConfig
	failed  map[string]string
	tools   map[string]toolEntry
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBus sets the event bus for connection and tool-set events.
func WithBus(b *events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithDialer overrides how server connections are established.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithClientInfo sets the identity sent in the MCP handshake.
func WithClientInfo(info protocol.Implementation) Option {
	return func(m *Manager) { m.clientInfo = info }
}

// NewManager creates an empty manager. Servers are connected with
// ConnectAll or Connect.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:     zap.NewNop(),
		clientInfo: protocol.Implementation{Name: "warp", Version: "dev"},
		conns:      make(map[string]Conn),
		configs:    make(map[string]config.McpServerConfig),
		failed:     make(map[string]string),
		tools:      make(map[string]toolEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dial == nil {
		m.dial = m.defaultDial
	}
	return m
}

// defaultDial builds the configured transport, creates a client, and runs
// the handshake.
func (m *Manager) defaultDial(ctx context.Context, name string, cfg config.McpServerConfig, logger *zap.Logger) (Conn, error) {
	var (
		tr  transport.Transport
		err error
	)
	switch cfg.Type {
	case config.TransportStdio:
		tr, err = transport.NewStdio(transport.StdioConfig{
			Command: cfg.Command,
			Args:    cfg.Args,
			Env:     cfg.Env,
			Logger:  logger,
		})
	case config.TransportSSE:
		tr, err = transport.NewSSE(transport.SSEConfig{
			Endpoint: cfg.URL,
			Headers:  cfg.Headers,
			Logger:   logger,
		})
	case config.TransportHTTP:
		tr, err = transport.NewStreamableHTTP(transport.StreamableHTTPConfig{
			Endpoint: cfg.URL,
			Headers:  cfg.Headers,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	c := client.New(client.Config{
		Transport:      tr,
		Logger:         logger,
		Name:           m.clientInfo.Name,
		Version:        m.clientInfo.Version,
		RequestTimeout: cfg.Timeout.Std(),
	})

	initCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, cfg.Timeout.Std())
		defer cancel()
	}
	if err := c.Initialize(initCtx, m.clientInfo); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// ConnectAll connects every configured server. Lenient servers that fail
// are recorded and skipped; a strict failure disconnects everything and
// aborts. Connection order is by name so failures are deterministic.
func (m *Manager) ConnectAll(ctx context.Context, servers map[string]config.McpServerConfig) error {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.Connect(ctx, name, servers[name]); err != nil {
			if servers[name].ConnectionMode == config.ConnectionStrict {
				derr := m.DisconnectAll(ctx)
				if derr != nil {
					m.logger.Warn("cleanup after strict failure", zap.Error(derr))
				}
				return &StrictConnectionError{Server: name, Err: err}
			}
		}
	}

	return m.RefreshTools(ctx)
}

// Connect connects one server and merges its tools into the aggregated
// set. Re-adding a connected name replaces it: the old connection is
// closed and its tool routes dropped before the new dial. On failure the
// reason is recorded in the failed-connections map and the error is
// returned; a lenient caller may ignore it.
func (m *Manager) Connect(ctx context.Context, name string, cfg config.McpServerConfig) error {
	m.mu.Lock()
	old := m.conns[name]
	if old != nil {
		delete(m.conns, name)
		// Routes must go now; a failed dial cannot leave tools resolving
		// to a closed connection.
		for tool, entry := range m.tools {
			if entry.server == name {
				delete(m.tools, tool)
			}
		}
	}
	m.configs[name] = cfg.Clone()
	m.mu.Unlock()

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			m.logger.Warn("closing replaced MCP server",
				zap.String("server", name), zap.Error(cerr))
		}
	}

	conn, err := m.dial(ctx, name, cfg, m.logger.With(zap.String("server", name)))
	if err != nil {
		m.mu.Lock()
		m.failed[name] = err.Error()
		m.mu.Unlock()

		m.logger.Warn("MCP server connection failed",
			zap.String("server", name), zap.Error(err))
		m.publish(events.TopicServerConnected, events.ServerConnected{
			Name: name, Success: false, Err: err.Error(),
		})
		return err
	}

	m.mu.Lock()
	m.conns[name] = conn
	delete(m.failed, name)
	m.mu.Unlock()

	m.logger.Info("MCP server connected", zap.String("server", name),
		zap.String("transport", string(cfg.Type)))
	m.publish(events.TopicServerConnected, events.ServerConnected{Name: name, Success: true})
	return nil
}

// Disconnect closes one server connection and drops its tools.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	m.mu.Lock()
	conn, exists := m.conns[name]
	delete(m.conns, name)
	delete(m.configs, name)
	delete(m.failed, name)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("server %s not connected", name)
	}
	err := conn.Close()
	if rerr := m.RefreshTools(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// DisconnectAll closes every connection in parallel.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]Conn)
	m.configs = make(map[string]config.McpServerConfig)
	m.failed = make(map[string]string)
	m.tools = make(map[string]toolEntry)
	m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for name, conn := range conns {
		name, conn := name, conn
		g.Go(func() error {
			if err := conn.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RefreshTools re-lists tools from every connected server and rebuilds the
// aggregated set. Name collisions resolve to the lexicographically first
// server; later claims are logged and dropped.
func (m *Manager) RefreshTools(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	conns := make(map[string]Conn, len(m.conns))
	for name, conn := range m.conns {
		conns[name] = conn
	}
	m.mu.RUnlock()
	sort.Strings(names)

	aggregated := make(map[string]toolEntry)
	var firstErr error
	for _, name := range names {
		tools, err := conns[name].ListTools(ctx)
		if err != nil {
			m.logger.Warn("listing tools failed",
				zap.String("server", name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("listing tools from %s: %w", name, err)
			}
			continue
		}
		for _, tool := range tools {
			if winner, taken := aggregated[tool.Name]; taken {
				m.logger.Warn("duplicate tool name, keeping first server's tool",
					zap.String("tool", tool.Name),
					zap.String("kept", winner.server),
					zap.String("dropped", name))
				continue
			}
			aggregated[tool.Name] = toolEntry{server: name, tool: tool}
		}
	}

	m.mu.Lock()
	m.tools = aggregated
	m.mu.Unlock()

	exposed := make([]string, 0, len(aggregated))
	for name := range aggregated {
		exposed = append(exposed, name)
	}
	sort.Strings(exposed)
	m.publish(events.TopicToolsUpdated, events.ToolsUpdated{Tools: exposed, Source: "mcp"})

	return firstErr
}

// Tools returns the aggregated tool set in provider-neutral form, sorted by
// name.
func (m *Manager) Tools() []types.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Tool, 0, len(m.tools))
	for name, entry := range m.tools {
		out = append(out, types.Tool{
			Name:        name,
			Description: entry.tool.Description,
			Parameters:  entry.tool.InputSchema,
			Server:      entry.server,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasTool reports whether a tool name is in the aggregated set.
func (m *Manager) HasTool(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tools[name]
	return ok
}

// ExecuteTool routes a tool call to the owning server and returns the
// flattened text result.
func (m *Manager) ExecuteTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	m.mu.RLock()
	entry, ok := m.tools[name]
	conn := m.conns[entry.server]
	m.mu.RUnlock()

	if !ok {
		return "", &ToolNotFoundError{Name: name}
	}
	if conn == nil {
		return "", &ExecutionError{Server: entry.server, Tool: name, Err: fmt.Errorf("server not connected")}
	}

	result, err := conn.CallTool(ctx, name, arguments)
	if err != nil {
		return "", &ExecutionError{Server: entry.server, Tool: name, Err: err}
	}
	return client.ResultText(result), nil
}

// ReadResourceText reads a resource URI from whichever server can serve it,
// trying servers in name order. Implements the prompt contributor's
// resource reader.
func (m *Manager) ReadResourceText(ctx context.Context, uri string) (string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	conns := make(map[string]Conn, len(m.conns))
	for name, conn := range m.conns {
		conns[name] = conn
	}
	m.mu.RUnlock()
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		result, err := conns[name].ReadResource(ctx, uri)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if text := client.ResourceText(result); text != "" {
			return text, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("reading resource %q: %s", uri, strings.Join(errs, "; "))
	}
	return "", fmt.Errorf("resource %q not found on any server", uri)
}

// IsHealthy pings one server. Unknown and failed servers report unhealthy.
func (m *Manager) IsHealthy(ctx context.Context, name string) bool {
	m.mu.RLock()
	conn := m.conns[name]
	m.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Ping(ctx) == nil
}

// HealthCheck pings every connected server.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	m.mu.RLock()
	conns := make(map[string]Conn, len(m.conns))
	for name, conn := range m.conns {
		conns[name] = conn
	}
	m.mu.RUnlock()

	results := make(map[string]bool, len(conns))
	for name, conn := range conns {
		err := conn.Ping(ctx)
		if err != nil {
			m.logger.Warn("health check failed",
				zap.String("server", name), zap.Error(err))
		}
		results[name] = err == nil
	}
	return results
}

// FailedConnections returns a copy of the failure reasons recorded for
// servers that could not connect.
func (m *Manager) FailedConnections() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.failed))
	for name, reason := range m.failed {
		out[name] = reason
	}
	return out
}

// ServerNames lists connected servers, sorted.
func (m *Manager) ServerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerInfo describes one configured server.
type ServerInfo struct {
	Name      string
	Transport config.TransportType
	Connected bool
	Err       string
}

// ListServers reports every configured server with its connection state.
func (m *Manager) ListServers() []ServerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerInfo, 0, len(m.configs))
	for name, cfg := range m.configs {
		_, connected := m.conns[name]
		out = append(out, ServerInfo{
			Name:      name,
			Transport: cfg.Type,
			Connected: connected,
			Err:       m.failed[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) publish(topic events.Topic, payload interface{}) {
	if m.bus != nil {
		m.bus.Publish(topic, payload)
	}
}
