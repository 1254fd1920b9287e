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

// Package postgres implements a durable SessionStore on PostgreSQL via
// lib/pq. Message search uses ILIKE over message text.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/lib/pq"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// Store is a PostgreSQL-backed SessionStore.
type Store struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New connects with the given DSN and initializes the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{db: db, encoder: encoder, decoder: decoder}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		last_activity TIMESTAMPTZ NOT NULL,
		message_count INTEGER DEFAULT 0,
		provider TEXT,
		model TEXT,
		input_tokens INTEGER DEFAULT 0,
		output_tokens INTEGER DEFAULT 0,
		total_tokens INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_call_id TEXT,
		tool_name TEXT,
		tool_calls_json TEXT,
		attachments BYTEA,
		token_count INTEGER DEFAULT 0,
		timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadMetadata implements storage.SessionStore.
func (s *Store) LoadMetadata(ctx context.Context, id string) (*storage.SessionMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, last_activity, message_count, provider, model,
		       input_tokens, output_tokens, total_tokens
		FROM sessions WHERE id = $1`, id)

	var meta storage.SessionMetadata
	var provider, model sql.NullString
	err := row.Scan(&meta.ID, &meta.CreatedAt, &meta.LastActivity, &meta.MessageCount,
		&provider, &model, &meta.Usage.InputTokens, &meta.Usage.OutputTokens,
		&meta.Usage.TotalTokens)
	if err == sql.ErrNoRows {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	meta.Provider = provider.String
	meta.Model = model.String
	return &meta, nil
}

// SaveMetadata implements storage.SessionStore.
func (s *Store) SaveMetadata(ctx context.Context, meta *storage.SessionMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_activity, message_count, provider, model,
		                      input_tokens, output_tokens, total_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			last_activity = EXCLUDED.last_activity,
			message_count = EXCLUDED.message_count,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			total_tokens = EXCLUDED.total_tokens`,
		meta.ID, meta.CreatedAt, meta.LastActivity, meta.MessageCount,
		meta.Provider, meta.Model,
		meta.Usage.InputTokens, meta.Usage.OutputTokens, meta.Usage.TotalTokens)
	if err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// LoadHistory implements storage.SessionStore.
func (s *Store) LoadHistory(ctx context.Context, id string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_call_id, tool_name, tool_calls_json,
		       attachments, token_count, timestamp
		FROM messages WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		var msg types.Message
		var role string
		var content, toolCallID, toolName, toolCallsJSON sql.NullString
		var attachments []byte
		var timestamp time.Time

		if err := rows.Scan(&role, &content, &toolCallID, &toolName,
			&toolCallsJSON, &attachments, &msg.TokenCount, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg, err = s.decodeMessage(msg, role, content.String, toolCallID, toolName, toolCallsJSON, attachments, timestamp)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage implements storage.SessionStore.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) error {
	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCallsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var attachments []byte
	if len(msg.Parts) > 0 {
		data, err := json.Marshal(msg.Parts)
		if err != nil {
			return fmt.Errorf("failed to marshal parts: %w", err)
		}
		attachments = s.encoder.EncodeAll(data, nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, tool_call_id, tool_name,
		                      tool_calls_json, attachments, token_count, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, string(msg.Role), msg.Content, msg.ToolCallID, msg.ToolName,
		toolCallsJSON, attachments, msg.TokenCount, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// TruncateHistory implements storage.SessionStore.
func (s *Store) TruncateHistory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to truncate history: %w", err)
	}
	return nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.TruncateHistory(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessionIDs implements storage.SessionStore.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchMessages implements storage.MessageSearcher using ILIKE matching.
func (s *Store) SearchMessages(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.MessageHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}

	q := `
		SELECT session_id, role, content, tool_call_id, tool_name,
		       tool_calls_json, attachments, token_count, timestamp
		FROM messages
		WHERE content ILIKE $1`
	args := []interface{}{"%" + escapeLike(query) + "%"}
	if opts.SessionID != "" {
		q += " AND session_id = $2"
		args = append(args, opts.SessionID)
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []storage.MessageHit
	for rows.Next() {
		var msg types.Message
		var sessionID, role string
		var content, toolCallID, toolName, toolCallsJSON sql.NullString
		var attachments []byte
		var timestamp time.Time

		if err := rows.Scan(&sessionID, &role, &content, &toolCallID, &toolName,
			&toolCallsJSON, &attachments, &msg.TokenCount, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg, err = s.decodeMessage(msg, role, content.String, toolCallID, toolName, toolCallsJSON, attachments, timestamp)
		if err != nil {
			return nil, err
		}
		hits = append(hits, storage.MessageHit{SessionID: sessionID, Message: msg})
	}
	return hits, rows.Err()
}

// Close implements storage.SessionStore.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(q string) string {
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, "%", `\%`)
	return strings.ReplaceAll(q, "_", `\_`)
}

func (s *Store) decodeMessage(msg types.Message, role, content string, toolCallID, toolName, toolCallsJSON sql.NullString, attachments []byte, timestamp time.Time) (types.Message, error) {
	msg.Role = types.Role(role)
	msg.Content = content
	msg.ToolCallID = toolCallID.String
	msg.ToolName = toolName.String
	msg.Timestamp = timestamp

	if toolCallsJSON.Valid && toolCallsJSON.String != "" {
		if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
			return msg, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
	}
	if len(attachments) > 0 {
		data, err := s.decoder.DecodeAll(attachments, nil)
		if err != nil {
			return msg, fmt.Errorf("failed to decompress attachments: %w", err)
		}
		if err := json.Unmarshal(data, &msg.Parts); err != nil {
			return msg, fmt.Errorf("failed to unmarshal parts: %w", err)
		}
	}
	return msg, nil
}

var (
	_ storage.SessionStore    = (*Store)(nil)
	_ storage.MessageSearcher = (*Store)(nil)
)
