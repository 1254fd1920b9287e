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

// Package tools hosts in-process custom tools. Custom tools live alongside
// MCP tools in the aggregated tool set the model sees; on a name collision
// the custom tool wins.
package tools

import (
	"context"

	"github.com/teradata-labs/warp/pkg/types"
)

// Tool is an in-process tool callable by the model.
type Tool interface {
	// Name returns the tool name as exposed to the model.
	Name() string

	// Description explains what the tool does, for the model.
	Description() string

	// InputSchema returns the JSON-Schema describing the arguments.
	InputSchema() map[string]interface{}

	// Execute runs the tool. The result is serialized before it enters
	// the conversation; returning an error produces a tool-level error
	// result rather than aborting the turn.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// funcTool adapts a plain function to the Tool interface.
type funcTool struct {
	name        string
	description string
	schema      map[string]interface{}
	fn          func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewTool builds a Tool from a function. A nil schema means the tool takes
// no arguments.
func NewTool(name, description string, schema map[string]interface{}, fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) Tool {
	if schema == nil {
		schema = map[string]interface{}{"type": "object"}
	}
	return &funcTool{name: name, description: description, schema: schema, fn: fn}
}

func (t *funcTool) Name() string                        { return t.name }
func (t *funcTool) Description() string                 { return t.description }
func (t *funcTool) InputSchema() map[string]interface{} { return t.schema }

func (t *funcTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.fn(ctx, args)
}

// Definition converts a Tool to its wire description.
func Definition(t Tool) types.Tool {
	return types.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.InputSchema(),
	}
}
