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

// ListResources fetches the server's resource definitions.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	resp, err := c.call(ctx, protocol.MethodResourcesList, json.RawMessage(`{}`))
	if err != nil {
		return nil, err
	}

	var result protocol.ResourceListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing resources/list result: %w", err)
	}
	return result.Resources, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	params, err := json.Marshal(protocol.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, protocol.MethodResourcesRead, params)
	if err != nil {
		return nil, err
	}

	var result protocol.ReadResourceResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing resources/read result: %w", err)
	}
	return &result, nil
}

// ResourceText flattens a read result's textual contents into one string.
func ResourceText(result *protocol.ReadResourceResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, item := range result.Contents {
		if item.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += item.Text
		}
	}
	return out
}
