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

package llm

import "strings"

// SanitizeToolName rewrites a tool name into the restricted pattern most
// providers require (letters, digits, underscore, dash, dot). MCP servers
// commonly namespace tools with colons, which those patterns reject.
func SanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z',
			ch >= '0' && ch <= '9', ch == '_', ch == '-', ch == '.':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// BuildToolNameMap maps sanitized tool names back to their originals so
// responses can be routed to the right tool.
func BuildToolNameMap(tools []string) map[string]string {
	m := make(map[string]string, len(tools))
	for _, name := range tools {
		m[SanitizeToolName(name)] = name
	}
	return m
}

// ReverseToolName resolves a sanitized name to the original, falling back
// to the sanitized form when no mapping exists.
func ReverseToolName(nameMap map[string]string, sanitized string) string {
	if original, ok := nameMap[sanitized]; ok {
		return original
	}
	return sanitized
}
