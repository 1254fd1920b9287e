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

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() Tool {
	return NewTool("echo", "echo the input",
		NewSchema().String("text", "text to echo", true).Build(),
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args["text"], nil
		})
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoTool()))

	result, err := r.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)
	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(NewTool("  ", "blank name", nil, nil)))
}

func TestReRegisterReplaces(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(NewTool("greet", "v1", nil,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return "hello", nil
		})))
	require.NoError(t, r.Register(NewTool("greet", "v2", nil,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return "hi there", nil
		})))

	result, err := r.Execute(context.Background(), "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", result)
	assert.Equal(t, []string{"greet"}, r.Names())
}

func TestExecuteValidatesArguments(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoTool()))

	_, err := r.Execute(context.Background(), "echo", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")

	_, err = r.Execute(context.Background(), "echo", map[string]interface{}{"text": 42})
	require.Error(t, err)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Execute(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestExecutePropagatesToolError(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("backend unavailable")
	require.NoError(t, r.Register(NewTool("flaky", "always fails", nil,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, boom
		})))

	_, err := r.Execute(context.Background(), "flaky", nil)
	assert.ErrorIs(t, err, boom)
}

func TestDefinitionsSorted(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(NewTool("zeta", "", nil, nil)))
	require.NoError(t, r.Register(NewTool("alpha", "", nil, nil)))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
	assert.Equal(t, map[string]interface{}{"type": "object"}, defs[0].Parameters)
}

func TestSchemaBuilder(t *testing.T) {
	schema := NewSchema().
		String("query", "search query", true).
		Integer("limit", "maximum results", false).
		Enum("mode", "search mode", false, "fast", "accurate").
		Build()

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]interface{})
	assert.Len(t, props, 3)
	assert.Equal(t, []interface{}{"query"}, schema["required"])

	mode := props["mode"].(map[string]interface{})
	assert.Equal(t, []interface{}{"fast", "accurate"}, mode["enum"])
}
