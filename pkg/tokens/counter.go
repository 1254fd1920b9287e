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

// Package tokens estimates token counts for context-window management.
// It uses tiktoken with the cl100k_base encoding, which is a reasonable
// approximation across the supported providers, and degrades to a bytes/4
// heuristic when the encoding is unavailable.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/warp/pkg/types"
)

// messageOverhead approximates the per-message framing cost (role markers
// and separators) in provider wire formats.
const messageOverhead = 10

// Counter estimates token counts for text and canonical messages.
type Counter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	defaultCounter *Counter
	counterOnce    sync.Once
)

// Default returns the shared counter instance. Loading the encoding parses
// the BPE table once, so callers share one counter.
func Default() *Counter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultCounter = &Counter{}
			return
		}
		defaultCounter = &Counter{encoder: enc}
	})
	return defaultCounter
}

// Count returns the token count for a text fragment.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return len(text) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// CountMessage estimates the token cost of one canonical message, including
// framing overhead, tool-call arguments, and a bytes/4 estimate for binary
// media parts.
func (c *Counter) CountMessage(msg types.Message) int {
	total := messageOverhead
	total += c.Count(msg.Content)
	for _, p := range msg.Parts {
		total += c.Count(p.Text)
		if p.Image != nil {
			total += len(p.Image.Data) / 4
		}
		if p.File != nil {
			total += len(p.File.Data) / 4
		}
	}
	for _, tc := range msg.ToolCalls {
		total += c.Count(tc.Name)
		total += c.Count(tc.ArgumentsJSON())
	}
	if msg.ToolName != "" {
		total += c.Count(msg.ToolName)
	}
	return total
}

// CountMessages estimates the total token cost of a message slice.
func (c *Counter) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}
