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

package openai

import (
	"encoding/base64"
	"fmt"

	openailib "github.com/sashabaranov/go-openai"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
)

// formatMessages reshapes the canonical log into chat-completions format:
// the system snapshot rides as the leading system message and tool results
// as role "tool" entries keyed by tool_call_id.
func formatMessages(messages []types.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openailib.ChatCompletionMessage{
				Role:    openailib.ChatMessageRoleSystem,
				Content: msg.Content,
			})

		case types.RoleUser:
			out = append(out, formatUserMessage(msg))

		case types.RoleAssistant:
			m := openailib.ChatCompletionMessage{
				Role:    openailib.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openailib.ToolCall{
					ID:   tc.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      llm.SanitizeToolName(tc.Name),
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
			out = append(out, m)

		case types.RoleTool:
			out = append(out, openailib.ChatCompletionMessage{
				Role:       openailib.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

// formatUserMessage renders a user entry, using multi-part content when
// media is attached. Images travel as base64 data URLs.
func formatUserMessage(msg types.Message) openailib.ChatCompletionMessage {
	if len(msg.Parts) == 0 {
		return openailib.ChatCompletionMessage{
			Role:    openailib.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}

	var parts []openailib.ChatMessagePart
	for _, part := range msg.Parts {
		switch {
		case part.Text != "":
			parts = append(parts, openailib.ChatMessagePart{
				Type: openailib.ChatMessagePartTypeText,
				Text: part.Text,
			})
		case part.Image != nil:
			parts = append(parts, openailib.ChatMessagePart{
				Type: openailib.ChatMessagePartTypeImageURL,
				ImageURL: &openailib.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s",
						part.Image.MimeType,
						base64.StdEncoding.EncodeToString(part.Image.Data)),
				},
			})
		case part.File != nil:
			parts = append(parts, openailib.ChatMessagePart{
				Type: openailib.ChatMessagePartTypeText,
				Text: fmt.Sprintf("[attached file %s (%s), %d bytes]",
					part.File.Filename, part.File.MimeType, len(part.File.Data)),
			})
		}
	}
	return openailib.ChatCompletionMessage{
		Role:         openailib.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

// formatTools converts the aggregated tool set into function definitions,
// sanitizing names and recording the reverse mapping.
func formatTools(tools []types.Tool, nameMap map[string]string) []openailib.Tool {
	out := make([]openailib.Tool, 0, len(tools))
	for _, tool := range tools {
		sanitized := llm.SanitizeToolName(tool.Name)
		nameMap[sanitized] = tool.Name
		out = append(out, openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        sanitized,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return out
}
