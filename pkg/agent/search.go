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
	"context"
	"sort"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// SearchService answers message and session searches. Stores with native
// text search (sqlite FTS5, postgres ILIKE) are used directly; the in-memory
// store falls back to a linear scan with fuzzy ranking.
type SearchService struct {
	store  storage.SessionStore
	logger *zap.Logger
}

func newSearchService(store storage.SessionStore, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{store: store, logger: logger}
}

// SessionHit is one session search result.
type SessionHit struct {
	// SessionID identifies the matching session.
	SessionID string

	// Matches counts the matching messages within the session.
	Matches int

	// First is the best-ranked matching message.
	First types.Message
}

// SearchMessages finds messages matching the query across all sessions, or
// within one session when opts.SessionID is set.
func (s *SearchService) SearchMessages(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.MessageHit, error) {
	if query == "" {
		return nil, nil
	}
	if searcher, ok := s.store.(storage.MessageSearcher); ok {
		return searcher.SearchMessages(ctx, query, opts)
	}
	return s.scanMessages(ctx, query, opts)
}

// scanMessages is the fallback for stores without native search: load every
// candidate message and rank the text bodies with fuzzy matching.
func (s *SearchService) scanMessages(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.MessageHit, error) {
	ids := []string{opts.SessionID}
	if opts.SessionID == "" {
		var err error
		ids, err = s.store.ListSessionIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	var (
		corpus     []string
		candidates []storage.MessageHit
	)
	for _, id := range ids {
		history, err := s.store.LoadHistory(ctx, id)
		if err != nil {
			s.logger.Warn("loading history for search failed",
				zap.String("session", id), zap.Error(err))
			continue
		}
		for _, msg := range history {
			text := msg.Text()
			if text == "" {
				continue
			}
			corpus = append(corpus, text)
			candidates = append(candidates, storage.MessageHit{SessionID: id, Message: msg})
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}

	matches := fuzzy.Find(query, corpus)
	out := make([]storage.MessageHit, 0, limit)
	for _, match := range matches {
		out = append(out, candidates[match.Index])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SearchSessions finds sessions whose messages match the query, ordered by
// match count descending, then id.
func (s *SearchService) SearchSessions(ctx context.Context, query string) ([]SessionHit, error) {
	// A deep limit: session ranking wants a wide hit set, not the UI's
	// default page.
	hits, err := s.SearchMessages(ctx, query, storage.SearchOptions{Limit: 500})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*SessionHit)
	order := make([]string, 0)
	for _, hit := range hits {
		entry, ok := byID[hit.SessionID]
		if !ok {
			entry = &SessionHit{SessionID: hit.SessionID, First: hit.Message}
			byID[hit.SessionID] = entry
			order = append(order, hit.SessionID)
		}
		entry.Matches++
	}

	out := make([]SessionHit, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Matches != out[j].Matches {
			return out[i].Matches > out[j].Matches
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
