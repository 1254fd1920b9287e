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

package client

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/warp/pkg/mcp/protocol"
)

// pipeTransport is an in-memory transport backed by a scripted server
// handler.
type pipeTransport struct {
	handler  func(req *protocol.Request) *protocol.Response
	toClient chan []byte

	mu     sync.Mutex
	closed bool
}

func newPipeTransport(handler func(req *protocol.Request) *protocol.Response) *pipeTransport {
	return &pipeTransport{handler: handler, toClient: make(chan []byte, 16)}
}

func (p *pipeTransport) Send(ctx context.Context, message []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return io.ErrClosedPipe
	}
	p.mu.Unlock()

	var req protocol.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	// Notifications get no response.
	if req.ID == nil {
		return nil
	}
	resp := p.handler(&req)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	p.toClient <- data
	return nil
}

func (p *pipeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-p.toClient:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (p *pipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.toClient)
	}
	return nil
}

// push injects a server-initiated message.
func (p *pipeTransport) push(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	p.toClient <- data
}

func okResponse(t *testing.T, id *protocol.RequestID, result interface{}) *protocol.Response {
	t.Helper()
	data, err := json.Marshal(result)
	require.NoError(t, err)
	return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: id, Result: data}
}

// scriptedServer answers the standard handshake plus per-method overrides.
func scriptedServer(t *testing.T, overrides map[string]func(req *protocol.Request) *protocol.Response) *pipeTransport {
	t.Helper()
	return newPipeTransport(func(req *protocol.Request) *protocol.Response {
		if h, ok := overrides[req.Method]; ok {
			return h(req)
		}
		switch req.Method {
		case protocol.MethodInitialize:
			return okResponse(t, req.ID, protocol.InitializeResult{
				ProtocolVersion: protocol.ProtocolVersion,
				ServerInfo:      protocol.Implementation{Name: "fake-server", Version: "1.0.0"},
				Capabilities: protocol.ServerCapabilities{
					Tools:     &protocol.ToolsCapability{},
					Resources: &protocol.ResourcesCapability{},
				},
			})
		case protocol.MethodPing:
			return okResponse(t, req.ID, map[string]interface{}{})
		default:
			return &protocol.Response{
				JSONRPC: protocol.JSONRPCVersion,
				ID:      req.ID,
				Error:   protocol.NewError(protocol.MethodNotFound, "unknown method", nil),
			}
		}
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInitializeHandshake(t *testing.T) {
	c := New(Config{Transport: scriptedServer(t, nil)})
	defer c.Close()

	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp", Version: "dev"}))
	assert.True(t, c.Initialized())
	assert.Equal(t, "fake-server", c.ServerInfo().Name)
	assert.NotNil(t, c.ServerCapabilities().Tools)

	assert.Error(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))
}

func TestInitializeVersionMismatch(t *testing.T) {
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodInitialize: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.InitializeResult{ProtocolVersion: "1999-01-01"})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()

	err := c.Initialize(testContext(t), protocol.Implementation{Name: "warp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol version mismatch")
	assert.False(t, c.Initialized())
}

func TestListTools(t *testing.T) {
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodToolsList: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.ToolListResult{Tools: []protocol.Tool{
				{Name: "search", Description: "search things"},
				{Name: "fetch", Description: "fetch things"},
			}})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	tools, err := c.ListTools(testContext(t))
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "search", tools[0].Name)
}

func TestCallToolValidatesArguments(t *testing.T) {
	var called bool
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodToolsList: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.ToolListResult{Tools: []protocol.Tool{{
				Name: "search",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"query"},
				},
			}}})
		},
		protocol.MethodToolsCall: func(req *protocol.Request) *protocol.Response {
			called = true
			return okResponse(t, req.ID, protocol.CallToolResult{Content: []protocol.Content{
				{Type: "text", Text: "found it"},
			}})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	// Schema violation is rejected before the wire call.
	_, err := c.CallTool(testContext(t), "search", map[string]interface{}{"limit": 3})
	require.Error(t, err)
	assert.False(t, called)

	result, err := c.CallTool(testContext(t), "search", map[string]interface{}{"query": "warp"})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "found it", ResultText(result))
}

func TestCallToolServerError(t *testing.T) {
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodToolsList: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.ToolListResult{Tools: []protocol.Tool{{Name: "flaky"}}})
		},
		protocol.MethodToolsCall: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.CallToolResult{
				IsError: true,
				Content: []protocol.Content{{Type: "text", Text: "backend unavailable"}},
			})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	_, err := c.CallTool(testContext(t), "flaky", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestCallToolUnknownName(t *testing.T) {
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodToolsList: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.ToolListResult{})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	_, err := c.CallTool(testContext(t), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadResource(t *testing.T) {
	tr := scriptedServer(t, map[string]func(req *protocol.Request) *protocol.Response{
		protocol.MethodResourcesList: func(req *protocol.Request) *protocol.Response {
			return okResponse(t, req.ID, protocol.ResourceListResult{Resources: []protocol.Resource{
				{URI: "docs://readme", Name: "readme"},
			}})
		},
		protocol.MethodResourcesRead: func(req *protocol.Request) *protocol.Response {
			var params protocol.ReadResourceParams
			require.NoError(t, json.Unmarshal(req.Params, &params))
			return okResponse(t, req.ID, protocol.ReadResourceResult{Contents: []protocol.ResourceContents{
				{URI: params.URI, MimeType: "text/plain", Text: "hello"},
			}})
		},
	})
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	resources, err := c.ListResources(testContext(t))
	require.NoError(t, err)
	require.Len(t, resources, 1)

	result, err := c.ReadResource(testContext(t), "docs://readme")
	require.NoError(t, err)
	assert.Equal(t, "hello", ResourceText(result))
}

func TestPingAndRPCError(t *testing.T) {
	c := New(Config{Transport: scriptedServer(t, nil)})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	require.NoError(t, c.Ping(testContext(t)))

	_, err := c.ListTools(testContext(t))
	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, protocol.MethodNotFound, rpcErr.Code)
}

func TestNotificationsDelivered(t *testing.T) {
	tr := scriptedServer(t, nil)
	c := New(Config{Transport: tr})
	defer c.Close()
	require.NoError(t, c.Initialize(testContext(t), protocol.Implementation{Name: "warp"}))

	tr.push(t, &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  protocol.MethodToolListChanged,
	})

	select {
	case n := <-c.Notifications():
		assert.Equal(t, protocol.MethodToolListChanged, n.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Config{Transport: scriptedServer(t, nil)})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
