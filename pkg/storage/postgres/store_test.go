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

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// newTestStore connects to the database named by WARP_POSTGRES_DSN and
// skips when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WARP_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WARP_POSTGRES_DSN not set")
	}
	s, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSessionID(t *testing.T) string {
	id := fmt.Sprintf("test-%s", uuid.NewString())
	return id
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := testSessionID(t)
	defer func() { _ = s.DeleteSession(ctx, id) }()

	_, err := s.LoadMetadata(ctx, "missing-"+id)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	meta := &storage.SessionMetadata{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		LastActivity: time.Now().UTC(),
		MessageCount: 2,
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		Usage:        types.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14},
	}
	require.NoError(t, s.SaveMetadata(ctx, meta))

	loaded, err := s.LoadMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, meta.MessageCount, loaded.MessageCount)
	assert.Equal(t, meta.Model, loaded.Model)
	assert.Equal(t, meta.Usage, loaded.Usage)
	assert.WithinDuration(t, meta.LastActivity, loaded.LastActivity, time.Millisecond)
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := testSessionID(t)
	defer func() { _ = s.DeleteSession(ctx, id) }()

	require.NoError(t, s.AppendMessage(ctx, id, types.NewUserMessage("run the report")))
	require.NoError(t, s.AppendMessage(ctx, id, types.NewAssistantMessage("", []types.ToolCall{{
		ID:        "call_1",
		Name:      "vantage-mcp:execute_sql",
		Arguments: map[string]interface{}{"sql": "select 1"},
	}})))
	require.NoError(t, s.AppendMessage(ctx, id, types.NewToolResultMessage("call_1", "vantage-mcp:execute_sql", "1")))

	history, err := s.LoadHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, "select 1", history[1].ToolCalls[0].Arguments["sql"])
	assert.Equal(t, "call_1", history[2].ToolCallID)

	require.NoError(t, s.TruncateHistory(ctx, id))
	history, err = s.LoadHistory(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSearchMessagesILIKE(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := testSessionID(t)
	defer func() { _ = s.DeleteSession(ctx, id) }()

	needle := "needle-" + uuid.NewString()
	require.NoError(t, s.AppendMessage(ctx, id, types.NewUserMessage("find the "+needle+" here")))
	require.NoError(t, s.AppendMessage(ctx, id, types.NewUserMessage("nothing relevant")))

	hits, err := s.SearchMessages(ctx, needle, storage.SearchOptions{SessionID: id})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message.Content, needle)

	// Case-insensitive.
	hits, err = s.SearchMessages(ctx, "NEEDLE-", storage.SearchOptions{SessionID: id, Limit: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
