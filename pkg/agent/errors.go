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
	"errors"
	"fmt"
)

// Lifecycle sentinels. Every facade operation checks them before doing any
// work.
var (
	// ErrNotStarted marks calls made before Start.
	ErrNotStarted = errors.New("agent not started")

	// ErrStopped marks calls made after Stop. A stopped agent is terminal.
	ErrStopped = errors.New("agent stopped")

	// ErrAlreadyStarted marks a second Start call.
	ErrAlreadyStarted = errors.New("agent already started")
)

// SessionNotFoundError identifies lookups of unknown sessions.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.ID)
}

// InputValidationError reports user input rejected before any model call,
// e.g. an image sent to a text-only model.
type InputValidationError struct {
	Issues   []string
	Provider string
	Model    string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("input rejected for %s/%s: %v", e.Provider, e.Model, e.Issues)
}

// ToolNotFoundError identifies a tool name absent from the aggregated set.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}
