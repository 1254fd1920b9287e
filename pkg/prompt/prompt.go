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

// Package prompt assembles the system prompt from an ordered set of
// contributors. Assembly is deterministic: contributors sort by priority
// ascending with ID as the tiebreak, and sections join with a blank line.
package prompt

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/config"
)

// Manager holds the contributor set for one agent.
type Manager struct {
	contributors []Contributor
	logger       *zap.Logger
}

// NewManager builds a manager from explicit contributors.
func NewManager(contributors []Contributor, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ordered := make([]Contributor, len(contributors))
	copy(ordered, contributors)
	sortContributors(ordered)
	return &Manager{contributors: ordered, logger: logger}
}

// FromConfig builds a manager from the systemPrompt config section. Unknown
// contributor types or sources fail construction.
func FromConfig(cfg config.SystemPromptConfig, reader ResourceReader, logger *zap.Logger) (*Manager, error) {
	entries := cfg.Effective()
	contributors := make([]Contributor, 0, len(entries))
	for _, entry := range entries {
		contrib, err := fromConfig(entry, reader)
		if err != nil {
			return nil, err
		}
		contributors = append(contributors, contrib)
	}
	return NewManager(contributors, logger), nil
}

// Contributors lists the manager's contributors in assembly order.
func (m *Manager) Contributors() []Contributor {
	out := make([]Contributor, len(m.contributors))
	copy(out, m.contributors)
	return out
}

// Build assembles the system prompt. A contributor that fails to resolve
// contributes nothing; the failure is logged and assembly continues so a
// flaky resource cannot take the whole prompt down.
func (m *Manager) Build(ctx context.Context) string {
	sections := make([]string, 0, len(m.contributors))
	for _, contrib := range m.contributors {
		if !contrib.Enabled() {
			continue
		}
		text, err := contrib.Resolve(ctx)
		if err != nil {
			m.logger.Warn("prompt contributor failed",
				zap.String("contributor", contrib.ID()),
				zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		sections = append(sections, text)
	}
	return strings.Join(sections, "\n\n")
}

func sortContributors(contributors []Contributor) {
	sort.SliceStable(contributors, func(i, j int) bool {
		if contributors[i].Priority() != contributors[j].Priority() {
			return contributors[i].Priority() < contributors[j].Priority()
		}
		return contributors[i].ID() < contributors[j].ID()
	})
}
