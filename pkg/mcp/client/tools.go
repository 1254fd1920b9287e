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
	"fmt"

	"github.com/teradata-labs/warp/pkg/mcp/protocol"
)

// ListTools fetches the server's tool definitions and refreshes the local
// cache.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	resp, err := c.call(ctx, protocol.MethodToolsList, json.RawMessage(`{}`))
	if err != nil {
		return nil, err
	}

	var result protocol.ToolListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing tools/list result: %w", err)
	}

	c.toolsMu.Lock()
	c.tools = make(map[string]protocol.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		c.tools[tool.Name] = tool
	}
	c.toolsMu.Unlock()

	return result.Tools, nil
}

// CallTool validates the arguments against the tool's schema and invokes
// it. A tool-level failure (IsError) is returned as an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	tool, err := c.lookupTool(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := protocol.ValidateToolArguments(tool, arguments); err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	params, err := json.Marshal(protocol.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing tools/call result: %w", err)
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s failed: %s", name, ResultText(&result))
	}
	return &result, nil
}

// lookupTool resolves a tool definition from the cache, refreshing it from
// the server on a miss.
func (c *Client) lookupTool(ctx context.Context, name string) (protocol.Tool, error) {
	c.toolsMu.RLock()
	tool, ok := c.tools[name]
	c.toolsMu.RUnlock()
	if ok {
		return tool, nil
	}

	if _, err := c.ListTools(ctx); err != nil {
		return protocol.Tool{}, err
	}

	c.toolsMu.RLock()
	tool, ok = c.tools[name]
	c.toolsMu.RUnlock()
	if !ok {
		return protocol.Tool{}, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// ResultText flattens a tool result's textual content into one string.
func ResultText(result *protocol.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += item.Text
		}
	}
	return out
}
