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

// Package storage defines the session persistence contract and the default
// in-memory implementation. Durable implementations live in the sqlite and
// postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/teradata-labs/warp/pkg/types"
)

// ErrSessionNotFound marks lookups of unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionMetadata is the per-session record kept outside the message log.
type SessionMetadata struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`

	// LastActivity is the time of the last completed turn.
	LastActivity time.Time `json:"lastActivity"`

	// MessageCount counts messages appended over the session's lifetime.
	MessageCount int `json:"messageCount"`

	// Provider and Model name the session's current adapter.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Usage accumulates token usage across turns.
	Usage types.Usage `json:"usage"`
}

// Clone returns a copy.
func (m *SessionMetadata) Clone() *SessionMetadata {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// SessionStore persists session metadata and message history. The core
// depends only on this interface; implementations may be in-memory or
// durable.
type SessionStore interface {
	// LoadMetadata returns a session's metadata, or ErrSessionNotFound.
	LoadMetadata(ctx context.Context, id string) (*SessionMetadata, error)

	// SaveMetadata upserts a session's metadata, keyed by meta.ID.
	SaveMetadata(ctx context.Context, meta *SessionMetadata) error

	// LoadHistory returns the session's message log in append order. A
	// session with no messages yields an empty slice.
	LoadHistory(ctx context.Context, id string) ([]types.Message, error)

	// AppendMessage appends one message to the session's log.
	AppendMessage(ctx context.Context, id string, msg types.Message) error

	// TruncateHistory deletes the session's messages, keeping metadata.
	TruncateHistory(ctx context.Context, id string) error

	// DeleteSession removes the session's metadata and messages.
	DeleteSession(ctx context.Context, id string) error

	// ListSessionIDs returns all known session ids, sorted.
	ListSessionIDs(ctx context.Context) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// SearchOptions scope a message search.
type SearchOptions struct {
	// SessionID limits the search to one session when set.
	SessionID string

	// Limit caps the number of hits; 0 means the store default.
	Limit int
}

// MessageHit is one message search result.
type MessageHit struct {
	SessionID string
	Message   types.Message
}

// MessageSearcher is implemented by stores with native text search
// (FTS5, ILIKE). Stores without it fall back to a linear scan with fuzzy
// ranking at the facade layer.
type MessageSearcher interface {
	SearchMessages(ctx context.Context, query string, opts SearchOptions) ([]MessageHit, error)
}

// DefaultSearchLimit caps search results when SearchOptions.Limit is 0.
const DefaultSearchLimit = 20
