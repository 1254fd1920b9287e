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
	"fmt"
	"strings"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/types"
)

// Input is one user turn: text plus optional media, routed to a session.
type Input struct {
	// Text is the user's message.
	Text string

	// Image and File attach media to the message.
	Image *types.ImagePart
	File  *types.FilePart

	// SessionID routes the turn; empty selects the current session.
	SessionID string

	// Stream emits intermediate text as llmservice:chunk events.
	Stream bool
}

// Empty reports whether the input carries neither text nor media.
func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Image == nil && in.File == nil
}

// parts converts the media attachments into message parts.
func (in Input) parts() []types.Part {
	var out []types.Part
	if in.Image != nil {
		img := *in.Image
		out = append(out, types.Part{Image: &img})
	}
	if in.File != nil {
		f := *in.File
		out = append(out, types.Part{File: &f})
	}
	return out
}

// validateInput checks the input against the active model's modality
// constraints. Returned issues are human-readable; an empty slice means the
// input may proceed to the model.
func validateInput(cfg config.LLMConfig, in Input) []string {
	support := config.ResolveModalities(cfg)

	var issues []string
	if in.Image != nil {
		if !support.Images {
			issues = append(issues, fmt.Sprintf("model %s does not accept image input", cfg.Model))
		} else if len(in.Image.Data) == 0 {
			issues = append(issues, "image attachment is empty")
		}
	}
	if in.File != nil {
		switch {
		case !support.Files:
			issues = append(issues, fmt.Sprintf("model %s does not accept file input", cfg.Model))
		case len(in.File.Data) == 0:
			issues = append(issues, "file attachment is empty")
		case int64(len(in.File.Data)) > support.MaxFileBytes:
			issues = append(issues, fmt.Sprintf("file exceeds the %d byte limit", support.MaxFileBytes))
		}
	}
	return issues
}
