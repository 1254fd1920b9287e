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

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/teradata-labs/warp/pkg/types"
)

// MemoryStore is the default SessionStore. Everything lives in process
// memory; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	metadata map[string]*SessionMetadata
	history  map[string][]types.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metadata: make(map[string]*SessionMetadata),
		history:  make(map[string][]types.Message),
	}
}

// LoadMetadata implements SessionStore.
func (s *MemoryStore) LoadMetadata(_ context.Context, id string) (*SessionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metadata[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return meta.Clone(), nil
}

// SaveMetadata implements SessionStore.
func (s *MemoryStore) SaveMetadata(_ context.Context, meta *SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[meta.ID] = meta.Clone()
	return nil
}

// LoadHistory implements SessionStore.
func (s *MemoryStore) LoadHistory(_ context.Context, id string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CloneMessages(s.history[id]), nil
}

// AppendMessage implements SessionStore.
func (s *MemoryStore) AppendMessage(_ context.Context, id string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[id] = append(s.history[id], msg)
	return nil
}

// TruncateHistory implements SessionStore.
func (s *MemoryStore) TruncateHistory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
	return nil
}

// DeleteSession implements SessionStore.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metadata, id)
	delete(s.history, id)
	return nil
}

// ListSessionIDs implements SessionStore.
func (s *MemoryStore) ListSessionIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.metadata))
	for id := range s.metadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements SessionStore.
func (s *MemoryStore) Close() error { return nil }

var _ SessionStore = (*MemoryStore)(nil)
