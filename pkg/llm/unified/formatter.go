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

package unified

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
)

// formatMessages reshapes the canonical log into any-llm-go messages.
// The unified interface is chat-completions shaped: tool results ride as
// role "tool" entries and assistant tool calls carry stringified argument
// JSON. Media parts degrade to text notes since the unified interface is
// text-only.
func formatMessages(messages []types.Message) []anyllmlib.Message {
	out := make([]anyllmlib.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, anyllmlib.Message{
				Role:    anyllmlib.RoleSystem,
				Content: msg.Content,
			})

		case types.RoleUser:
			out = append(out, anyllmlib.Message{
				Role:    "user",
				Content: flattenUserContent(msg),
			})

		case types.RoleAssistant:
			m := anyllmlib.Message{
				Role:    "assistant",
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, anyllmlib.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: anyllmlib.FunctionCall{
						Name:      llm.SanitizeToolName(tc.Name),
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
			out = append(out, m)

		case types.RoleTool:
			out = append(out, anyllmlib.Message{
				Role:       "tool",
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

// flattenUserContent joins a multi-part user message into plain text.
func flattenUserContent(msg types.Message) string {
	if len(msg.Parts) == 0 {
		return msg.Content
	}
	var content string
	for _, part := range msg.Parts {
		switch {
		case part.Text != "":
			if content != "" {
				content += "\n"
			}
			content += part.Text
		case part.Image != nil:
			if content != "" {
				content += "\n"
			}
			content += fmt.Sprintf("[attached image (%s), %d bytes]",
				part.Image.MimeType, len(part.Image.Data))
		case part.File != nil:
			if content != "" {
				content += "\n"
			}
			content += fmt.Sprintf("[attached file %s (%s), %d bytes]",
				part.File.Filename, part.File.MimeType, len(part.File.Data))
		}
	}
	return content
}

func hasSystemMessage(messages []anyllmlib.Message) bool {
	for _, m := range messages {
		if m.Role == anyllmlib.RoleSystem {
			return true
		}
	}
	return false
}
