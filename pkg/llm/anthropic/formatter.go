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

package anthropic

import (
	"encoding/base64"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
)

// formatMessages reshapes the canonical log into the Messages API format.
// System messages are extracted into the separate system field; tool
// results ride as user messages carrying tool_result blocks.
func formatMessages(messages []types.Message) (string, []sdk.MessageParam) {
	var systemParts []string
	var out []sdk.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}

		case types.RoleUser:
			if content := formatUserContent(msg); len(content) > 0 {
				out = append(out, sdk.NewUserMessage(content...))
			}

		case types.RoleAssistant:
			var content []sdk.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					// The API rejects null input on tool_use blocks.
					args = map[string]interface{}{}
				}
				content = append(content, sdk.NewToolUseBlock(tc.ID, args, llm.SanitizeToolName(tc.Name)))
			}
			if len(content) > 0 {
				out = append(out, sdk.NewAssistantMessage(content...))
			}

		case types.RoleTool:
			out = append(out, sdk.NewUserMessage(
				sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

// formatUserContent renders a user message body, expanding media parts
// into image blocks. Unsupported file parts degrade to a text note so the
// model still learns an attachment existed.
func formatUserContent(msg types.Message) []sdk.ContentBlockParamUnion {
	if len(msg.Parts) == 0 {
		if msg.Content == "" {
			return nil
		}
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(msg.Content)}
	}

	var content []sdk.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch {
		case part.Text != "":
			content = append(content, sdk.NewTextBlock(part.Text))
		case part.Image != nil:
			content = append(content, sdk.NewImageBlockBase64(
				part.Image.MimeType,
				base64.StdEncoding.EncodeToString(part.Image.Data),
			))
		case part.File != nil:
			content = append(content, sdk.NewTextBlock(
				fmt.Sprintf("[attached file %s (%s), %d bytes]",
					part.File.Filename, part.File.MimeType, len(part.File.Data)),
			))
		}
	}
	return content
}

// formatTools converts the aggregated tool set, sanitizing names and
// recording the reverse mapping for response routing.
func formatTools(tools []types.Tool, nameMap map[string]string) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		sanitized := llm.SanitizeToolName(tool.Name)
		nameMap[sanitized] = tool.Name

		param := sdk.ToolParam{
			Name:        sanitized,
			Description: sdk.String(tool.Description),
			InputSchema: formatSchema(tool.Parameters),
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &param})
	}
	return out
}

func formatSchema(parameters map[string]interface{}) sdk.ToolInputSchemaParam {
	schema := sdk.ToolInputSchemaParam{}
	if parameters == nil {
		return schema
	}
	if props, ok := parameters["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := parameters["required"].([]interface{}); ok {
		required := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
		schema.Required = required
	}
	return schema
}
