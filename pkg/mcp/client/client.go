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

// Package client implements an MCP client session over a transport: the
// initialize handshake, request/response correlation, and the tools and
// resources operations.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teradata-labs/warp/pkg/mcp/protocol"
	"github.com/teradata-labs/warp/pkg/mcp/transport"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a single request when the caller's context
// carries no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Client is one MCP connection. It owns the receive loop on its transport
// and correlates responses to in-flight requests by ID.
type Client struct {
	transport transport.Transport
	logger    *zap.Logger
	timeout   time.Duration

	nextID    atomic.Int64
	pendingMu sync.RWMutex
	pending   map[string]chan *protocol.Response

	toolsMu sync.RWMutex
	tools   map[string]protocol.Tool

	notifications chan Notification

	stateMu            sync.RWMutex
	initialized        bool
	serverInfo         protocol.Implementation
	serverCapabilities protocol.ServerCapabilities

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Config configures a Client.
type Config struct {
	Transport transport.Transport
	Logger    *zap.Logger

	// Name and Version identify this client in the handshake.
	Name    string
	Version string

	// RequestTimeout bounds each request; zero selects
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Notification is a server-initiated message without an ID.
type Notification struct {
	Method string
	Params json.RawMessage
}

// New creates a client and starts its receive loop.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:     cfg.Transport,
		logger:        logger,
		timeout:       timeout,
		pending:       make(map[string]chan *protocol.Response),
		tools:         make(map[string]protocol.Tool),
		notifications: make(chan Notification, 100),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.receiveLoop()

	return c
}

// Initialize performs the MCP handshake: initialize request, protocol
// version check, then the initialized notification.
func (c *Client) Initialize(ctx context.Context, info protocol.Implementation) error {
	c.stateMu.Lock()
	if c.initialized {
		c.stateMu.Unlock()
		return fmt.Errorf("already initialized")
	}
	c.stateMu.Unlock()

	params, err := json.Marshal(protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      info,
	})
	if err != nil {
		return err
	}

	resp, err := c.call(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parsing initialize result: %w", err)
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: client=%s server=%s",
			protocol.ProtocolVersion, result.ProtocolVersion)
	}

	c.stateMu.Lock()
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.stateMu.Unlock()

	c.logger.Info("MCP handshake complete",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.Bool("tools", result.Capabilities.Tools != nil),
		zap.Bool("resources", result.Capabilities.Resources != nil))

	// Completing the handshake requires the initialized notification; it is
	// a request without an ID.
	notify, err := json.Marshal(&protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.MethodInitialized,
	})
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, notify); err != nil {
		return fmt.Errorf("sending initialized notification: %w", err)
	}
	return nil
}

// Ping checks connection health.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, json.RawMessage(`{}`))
	return err
}

// Initialized reports whether the handshake has completed.
func (c *Client) Initialized() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.initialized
}

// ServerInfo returns the server's handshake identity.
func (c *Client) ServerInfo() protocol.Implementation {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the server's declared capabilities.
func (c *Client) ServerCapabilities() protocol.ServerCapabilities {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.serverCapabilities
}

// Notifications exposes server-initiated notifications, e.g. tool list
// changes. The channel closes when the client does.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Close stops the receive loop and closes the transport. Safe to call more
// than once.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	c.stateMu.Unlock()

	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()
	close(c.notifications)
	return err
}

// call sends one request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (*protocol.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      protocol.NewNumericRequestID(c.nextID.Add(1)),
		Method:  method,
		Params:  params,
	}
	if err := protocol.ValidateRequest(req); err != nil {
		return nil, err
	}

	respCh := make(chan *protocol.Response, 1)
	key := req.ID.String()

	c.pendingMu.Lock()
	c.pending[key] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	if err := c.transport.Send(ctx, payload); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("client closed")
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

// receiveLoop dispatches incoming messages until the client closes.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		data, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				return
			}
			c.logger.Error("receive failed", zap.Error(err))
			continue
		}
		if len(data) == 0 {
			continue
		}

		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil {
			c.dispatchResponse(&resp)
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err == nil && req.Method != "" {
			c.dispatchNotification(&req)
			continue
		}

		c.logger.Warn("unrecognized message", zap.ByteString("data", data))
	}
}

func (c *Client) dispatchResponse(resp *protocol.Response) {
	key := resp.ID.String()

	c.pendingMu.RLock()
	respCh, ok := c.pending[key]
	c.pendingMu.RUnlock()

	if !ok {
		c.logger.Warn("response for unknown request", zap.String("id", key))
		return
	}
	select {
	case respCh <- resp:
	default:
	}
}

func (c *Client) dispatchNotification(req *protocol.Request) {
	// Requests with an ID would need an answer; this client does not serve
	// any server-initiated methods.
	if req.ID != nil {
		c.logger.Warn("ignoring server request", zap.String("method", req.Method))
		return
	}
	select {
	case c.notifications <- Notification{Method: req.Method, Params: req.Params}:
	default:
		c.logger.Debug("notification dropped, buffer full", zap.String("method", req.Method))
	}
}
