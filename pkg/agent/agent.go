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

// Package agent is the user-facing handle on the warp runtime: lifecycle,
// turn routing, LLM switching, MCP server management, tool discovery, and
// session operations. Everything below it (sessions, conversation,
// adapters, MCP, prompts, state) is wired together here.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/conversation"
	"github.com/teradata-labs/warp/pkg/events"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/llm/factory"
	"github.com/teradata-labs/warp/pkg/mcp"
	"github.com/teradata-labs/warp/pkg/prompt"
	"github.com/teradata-labs/warp/pkg/state"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/tools"
	"github.com/teradata-labs/warp/pkg/types"
)

// DefaultSessionID is the session turns land on when none is named.
const DefaultSessionID = "default"

// Agent is the single entry point for embedding the runtime. Create it with
// New, Start it once, and Stop it once; a stopped agent is terminal.
type Agent struct {
	cfg    config.Config
	logger *zap.Logger

	// Injected by options; defaulted at Start.
	store      storage.SessionStore
	dialer     mcp.Dialer
	newAdapter AdapterFactory
	summarizer conversation.Summarizer
	sweepEvery time.Duration

	mu        sync.Mutex
	started   bool
	stopped   bool
	currentID string
	cancel    context.CancelFunc

	bus      *events.Bus
	state    *state.Manager
	prompts  *prompt.Manager
	mcp      *mcp.Manager
	custom   *tools.Registry
	router   *toolRouter
	sessions *SessionManager
	search   *SearchService
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStore overrides the configured session store.
func WithStore(s storage.SessionStore) Option {
	return func(a *Agent) { a.store = s }
}

// WithMcpDialer overrides how MCP server connections are established.
func WithMcpDialer(d mcp.Dialer) Option {
	return func(a *Agent) { a.dialer = d }
}

// WithAdapterFactory overrides how LLM adapters are built.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(a *Agent) {
		if f != nil {
			a.newAdapter = f
		}
	}
}

// WithSummarizer installs the optional middle-window compression hook.
func WithSummarizer(s conversation.Summarizer) Option {
	return func(a *Agent) { a.summarizer = s }
}

// WithSweepInterval overrides the session expiry scan interval.
func WithSweepInterval(d time.Duration) Option {
	return func(a *Agent) { a.sweepEvery = d }
}

// New validates the configuration and prepares an agent. Nothing connects
// until Start.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent: nil config")
	}
	working := cfg.Clone()
	working.ApplyDefaults()
	warnings, err := working.Validate()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:    working,
		logger: zap.NewNop(),
		newAdapter: func(c config.LLMConfig, l *zap.Logger) (llm.Adapter, error) {
			return factory.New(c, l)
		},
		currentID: DefaultSessionID,
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, w := range warnings {
		a.logger.Warn("configuration warning", zap.String("issue", w.String()))
	}
	return a, nil
}

// Start brings the runtime up: state, event bus, MCP connections, prompt
// manager, session manager, and search. It may be called exactly once.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if a.started {
		return ErrAlreadyStarted
	}

	if a.store == nil {
		store, err := openStore(a.cfg.Storage)
		if err != nil {
			return err
		}
		a.store = store
	}

	a.bus = events.NewBus(events.WithLogger(a.logger))
	a.state = state.NewManager(&a.cfg, a.logger)

	mcpOpts := []mcp.Option{mcp.WithLogger(a.logger), mcp.WithBus(a.bus)}
	if a.dialer != nil {
		mcpOpts = append(mcpOpts, mcp.WithDialer(a.dialer))
	}
	a.mcp = mcp.NewManager(mcpOpts...)

	if err := a.mcp.ConnectAll(ctx, a.cfg.McpServers); err != nil {
		var strict *mcp.StrictConnectionError
		if errors.As(err, &strict) {
			a.bus.Close()
			return err
		}
		// Lenient failures are recorded per server; whatever else surfaced
		// (a tool-listing hiccup) is not fatal.
		a.logger.Warn("MCP startup finished with errors", zap.Error(err))
	}

	prompts, err := prompt.FromConfig(a.cfg.SystemPrompt, a.mcp, a.logger)
	if err != nil {
		derr := a.mcp.DisconnectAll(ctx)
		if derr != nil {
			a.logger.Warn("MCP cleanup after failed start", zap.Error(derr))
		}
		a.bus.Close()
		return err
	}
	a.prompts = prompts

	a.custom = tools.NewRegistry(a.logger)
	a.router = newToolRouter(a.mcp, a.custom, a.logger)

	a.sessions = newSessionManager(sessionManagerConfig{
		state:      a.state,
		store:      a.store,
		bus:        a.bus,
		prompts:    a.prompts,
		tools:      a.router,
		newAdapter: a.newAdapter,
		summarizer: a.summarizer,
		sessions:   a.cfg.Sessions,
		sweepEvery: a.sweepEvery,
		logger:     a.logger,
	})

	bg, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sessions.Start(bg)

	a.search = newSearchService(a.store, a.logger)

	a.started = true
	a.logger.Info("agent started",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("model", a.cfg.LLM.Model),
		zap.Int("mcpServers", len(a.cfg.McpServers)))
	return nil
}

// Stop shuts the runtime down: session manager, MCP clients, storage, and
// the event bus. Shutdown errors are aggregated; the agent still transitions
// to stopped and stays terminal.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if !a.started {
		return ErrNotStarted
	}
	a.started = false
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if err := a.sessions.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if err := a.mcp.DisconnectAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mcp: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	a.bus.Close()

	err := errors.Join(errs...)
	if err != nil {
		a.logger.Warn("shutdown finished with errors", zap.Error(err))
	} else {
		a.logger.Info("agent stopped")
	}
	return err
}

// ensureStarted guards every non-trivial operation.
func (a *Agent) ensureStarted() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if !a.started {
		return ErrNotStarted
	}
	return nil
}

// Run executes one user turn on the named session, creating it on demand,
// and returns the final assistant text. Blank input returns "" without
// calling the model.
func (a *Agent) Run(ctx context.Context, in Input) (string, error) {
	if err := a.ensureStarted(); err != nil {
		return "", err
	}
	id := in.SessionID
	if id == "" {
		id = a.CurrentSessionID()
	}
	sess, err := a.sessions.Create(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.Run(ctx, in)
}

// SwitchLLM applies a partial LLM configuration change. Scope is a session
// id, state.GlobalScope for all sessions, or empty for the current session.
// Affected live sessions get a fresh adapter; their conversations are kept.
// Validation warnings are returned alongside success.
func (a *Agent) SwitchLLM(ctx context.Context, updates config.LLMConfig, scope string) ([]config.Issue, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	if scope == "" {
		scope = a.CurrentSessionID()
	}

	resolved, warnings, err := a.state.UpdateLLM(scope, updates)
	if err != nil {
		return warnings, err
	}

	if scope == state.GlobalScope {
		err = a.sessions.SwitchLLMAll(resolved)
	} else {
		err = a.sessions.SwitchLLM(resolved, scope)
	}
	return warnings, err
}

// ConnectMcpServer validates, records, and connects an MCP server.
// Re-adding an existing name replaces it, closing the old connection. On a
// lenient connection failure the server stays registered with its failure
// reason; a strict failure rolls the registration back to what it was.
func (a *Agent) ConnectMcpServer(ctx context.Context, name string, srv config.McpServerConfig) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}

	prior, replacing := a.state.McpServers()[name]
	entry, err := a.state.AddMcpServer(name, srv)
	if err != nil {
		return err
	}
	if err := a.mcp.Connect(ctx, name, entry); err != nil {
		if entry.ConnectionMode == config.ConnectionStrict {
			if replacing {
				if _, rerr := a.state.AddMcpServer(name, prior); rerr != nil {
					a.logger.Warn("restoring replaced server entry",
						zap.String("server", name), zap.Error(rerr))
				}
			} else {
				a.state.RemoveMcpServer(name)
			}
		}
		return err
	}
	if err := a.mcp.RefreshTools(ctx); err != nil {
		a.logger.Warn("tool refresh after connect", zap.String("server", name), zap.Error(err))
	}
	return nil
}

// RemoveMcpServer disconnects and forgets a server, failed or connected.
func (a *Agent) RemoveMcpServer(ctx context.Context, name string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	known := a.state.RemoveMcpServer(name)
	if err := a.mcp.Disconnect(ctx, name); err != nil {
		if !known {
			return fmt.Errorf("MCP server %q not configured", name)
		}
		// The server was configured but had no live connection (a lenient
		// failure); removal already happened.
		a.logger.Debug("disconnect on remove", zap.String("server", name), zap.Error(err))
	}
	return nil
}

// ExecuteTool invokes a tool by name outside any conversation.
func (a *Agent) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if err := a.ensureStarted(); err != nil {
		return "", err
	}
	return a.router.Execute(ctx, name, args)
}

// AllTools returns the merged tool set: MCP tools plus in-process tools.
func (a *Agent) AllTools() ([]types.Tool, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.router.Tools(), nil
}

// McpTools returns only the MCP-aggregated tool set.
func (a *Agent) McpTools() ([]types.Tool, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.mcp.Tools(), nil
}

// McpServers reports every configured MCP server with its connection state.
func (a *Agent) McpServers() ([]mcp.ServerInfo, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.mcp.ListServers(), nil
}

// McpFailedConnections returns the failure reasons for servers that could
// not connect.
func (a *Agent) McpFailedConnections() (map[string]string, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.mcp.FailedConnections(), nil
}

// RegisterTool adds an in-process tool and announces the refreshed set.
func (a *Agent) RegisterTool(t tools.Tool) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	if err := a.custom.Register(t); err != nil {
		return err
	}
	a.bus.Publish(events.TopicToolsUpdated, events.ToolsUpdated{
		Tools:  a.custom.Names(),
		Source: "custom",
	})
	return nil
}

// UnregisterTool removes an in-process tool.
func (a *Agent) UnregisterTool(name string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	a.custom.Unregister(name)
	a.bus.Publish(events.TopicToolsUpdated, events.ToolsUpdated{
		Tools:  a.custom.Names(),
		Source: "custom",
	})
	return nil
}

// SystemPrompt builds the current system prompt.
func (a *Agent) SystemPrompt(ctx context.Context) (string, error) {
	if err := a.ensureStarted(); err != nil {
		return "", err
	}
	return a.prompts.Build(ctx), nil
}

// CreateSession creates or returns a session. An empty id gets a UUID.
func (a *Agent) CreateSession(ctx context.Context, id string) (*ChatSession, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.sessions.Create(ctx, id)
}

// GetSession returns a live or persisted session.
func (a *Agent) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.sessions.Get(ctx, id)
}

// ListSessions returns metadata for every known session.
func (a *Agent) ListSessions(ctx context.Context) ([]*storage.SessionMetadata, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.sessions.List(ctx)
}

// EndSession drops a session from memory; its history survives.
func (a *Agent) EndSession(ctx context.Context, id string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	return a.sessions.End(ctx, id)
}

// DeleteSession drops a session and purges its persisted history.
func (a *Agent) DeleteSession(ctx context.Context, id string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	if err := a.sessions.Delete(ctx, id); err != nil {
		return err
	}
	a.mu.Lock()
	if a.currentID == id {
		a.currentID = DefaultSessionID
	}
	a.mu.Unlock()
	return nil
}

// LoadSession makes the named session current; an empty id selects the
// default session. The session is materialized so a missing id fails here
// rather than on the next Run.
func (a *Agent) LoadSession(ctx context.Context, id string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	if id == "" {
		id = DefaultSessionID
	}
	if _, err := a.sessions.Create(ctx, id); err != nil {
		return err
	}
	a.mu.Lock()
	a.currentID = id
	a.mu.Unlock()
	return nil
}

// CurrentSessionID returns the session Run targets by default.
func (a *Agent) CurrentSessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentID
}

// ResetConversation clears a session's history; empty id means the current
// session.
func (a *Agent) ResetConversation(ctx context.Context, id string) error {
	if err := a.ensureStarted(); err != nil {
		return err
	}
	if id == "" {
		id = a.CurrentSessionID()
	}
	return a.sessions.Reset(ctx, id)
}

// SessionHistory returns a session's message log.
func (a *Agent) SessionHistory(ctx context.Context, id string) ([]types.Message, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	sess, err := a.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// GetSessionMetadata returns a session's metadata.
func (a *Agent) GetSessionMetadata(ctx context.Context, id string) (*storage.SessionMetadata, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.sessions.Metadata(ctx, id)
}

// SearchMessages finds messages matching the query.
func (a *Agent) SearchMessages(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.MessageHit, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.search.SearchMessages(ctx, query, opts)
}

// SearchSessions finds sessions whose messages match the query.
func (a *Agent) SearchSessions(ctx context.Context, query string) ([]SessionHit, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.search.SearchSessions(ctx, query)
}

// Events returns the agent's event bus. Valid after Start.
func (a *Agent) Events() *events.Bus {
	return a.bus
}

// EffectiveConfig returns a copy of the current global configuration.
func (a *Agent) EffectiveConfig() (config.Config, error) {
	if err := a.ensureStarted(); err != nil {
		return config.Config{}, err
	}
	return a.state.Effective(), nil
}

// ExportConfig serializes the effective configuration, masking secrets
// unless includeSecrets is set.
func (a *Agent) ExportConfig(includeSecrets bool) ([]byte, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.state.Export(includeSecrets)
}
