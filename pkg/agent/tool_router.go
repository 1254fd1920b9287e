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
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/mcp"
	"github.com/teradata-labs/warp/pkg/tools"
	"github.com/teradata-labs/warp/pkg/types"
)

// toolRouter merges the MCP tool set with in-process custom tools and routes
// executions. Custom tools win name collisions so an operator can shadow a
// misbehaving server tool locally.
type toolRouter struct {
	mcp    *mcp.Manager
	custom *tools.Registry
	logger *zap.Logger
}

func newToolRouter(mcpMgr *mcp.Manager, custom *tools.Registry, logger *zap.Logger) *toolRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &toolRouter{mcp: mcpMgr, custom: custom, logger: logger}
}

// Tools returns the merged tool set, sorted by name.
func (r *toolRouter) Tools() []types.Tool {
	merged := make(map[string]types.Tool)
	for _, t := range r.mcp.Tools() {
		merged[t.Name] = t
	}
	for _, t := range r.custom.Definitions() {
		if shadowed, ok := merged[t.Name]; ok {
			r.logger.Warn("custom tool shadows MCP tool",
				zap.String("tool", t.Name),
				zap.String("server", shadowed.Server))
		}
		merged[t.Name] = t
	}

	out := make([]types.Tool, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute routes one tool call: custom registry first, then the owning MCP
// server.
func (r *toolRouter) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if _, ok := r.custom.Get(name); ok {
		result, err := r.custom.Execute(ctx, name, args)
		if err != nil {
			return "", err
		}
		return types.SerializeToolResult(result), nil
	}
	if r.mcp.HasTool(name) {
		return r.mcp.ExecuteTool(ctx, name, args)
	}
	return "", &ToolNotFoundError{Name: name}
}

var _ ToolSource = (*toolRouter)(nil)
