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

// Package sqlite implements a durable SessionStore on SQLite. The store
// runs in WAL mode, keeps an FTS5 index over message text for search, and
// compresses attachment blobs with zstd.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/teradata-labs/warp/internal/sqlitedriver"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// Store is a SQLite-backed SessionStore.
type Store struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for an ephemeral database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
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
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL,
		message_count INTEGER DEFAULT 0,
		provider TEXT,
		model TEXT,
		input_tokens INTEGER DEFAULT 0,
		output_tokens INTEGER DEFAULT 0,
		total_tokens INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_call_id TEXT,
		tool_name TEXT,
		tool_calls_json TEXT,
		attachments BLOB,
		token_count INTEGER DEFAULT 0,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity);

	-- FTS5 index over message text (BM25 ranking)
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		message_id UNINDEXED,
		session_id UNINDEXED,
		content,
		tokenize='porter unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS messages_fts_insert AFTER INSERT ON messages
	BEGIN
		INSERT INTO messages_fts(message_id, session_id, content)
		VALUES (NEW.id, NEW.session_id, NEW.content);
	END;

	CREATE TRIGGER IF NOT EXISTS messages_fts_delete AFTER DELETE ON messages
	BEGIN
		DELETE FROM messages_fts WHERE message_id = OLD.id;
	END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadMetadata implements storage.SessionStore.
func (s *Store) LoadMetadata(ctx context.Context, id string) (*storage.SessionMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, last_activity, message_count, provider, model,
		       input_tokens, output_tokens, total_tokens
		FROM sessions WHERE id = ?`, id)

	var meta storage.SessionMetadata
	var createdAt, lastActivity int64
	var provider, model sql.NullString
	err := row.Scan(&meta.ID, &createdAt, &lastActivity, &meta.MessageCount,
		&provider, &model, &meta.Usage.InputTokens, &meta.Usage.OutputTokens,
		&meta.Usage.TotalTokens)
	if err == sql.ErrNoRows {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	meta.CreatedAt = time.Unix(0, createdAt)
	meta.LastActivity = time.Unix(0, lastActivity)
	meta.Provider = provider.String
	meta.Model = model.String
	return &meta, nil
}

// SaveMetadata implements storage.SessionStore.
func (s *Store) SaveMetadata(ctx context.Context, meta *storage.SessionMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_activity, message_count, provider, model,
		                      input_tokens, output_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_activity = excluded.last_activity,
			message_count = excluded.message_count,
			provider = excluded.provider,
			model = excluded.model,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			total_tokens = excluded.total_tokens`,
		meta.ID, meta.CreatedAt.UnixNano(), meta.LastActivity.UnixNano(),
		meta.MessageCount, meta.Provider, meta.Model,
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
		FROM messages WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage implements storage.SessionStore.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) error {
	toolCallsJSON, attachments, err := s.encodeMessage(msg)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, tool_call_id, tool_name,
		                      tool_calls_json, attachments, token_count, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(msg.Role), msg.Content, msg.ToolCallID, msg.ToolName,
		toolCallsJSON, attachments, msg.TokenCount, msg.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// TruncateHistory implements storage.SessionStore.
func (s *Store) TruncateHistory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id)
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
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
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

// SearchMessages implements storage.MessageSearcher using the FTS5 index.
func (s *Store) SearchMessages(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.MessageHit, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}

	q := `
		SELECT m.session_id, m.role, m.content, m.tool_call_id, m.tool_name,
		       m.tool_calls_json, m.attachments, m.token_count, m.timestamp
		FROM messages_fts f
		JOIN messages m ON m.id = f.message_id
		WHERE messages_fts MATCH ?`
	args := []interface{}{ftsQuery}
	if opts.SessionID != "" {
		q += " AND m.session_id = ?"
		args = append(args, opts.SessionID)
	}
	q += " ORDER BY bm25(messages_fts) LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []storage.MessageHit
	for rows.Next() {
		var sessionID string
		msg, err := s.scanHit(rows, &sessionID)
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

// buildFTSQuery quotes each term so user input cannot inject FTS5 syntax.
func buildFTSQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		escaped := strings.ReplaceAll(term, `"`, `""`)
		quoted = append(quoted, `"`+escaped+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func (s *Store) encodeMessage(msg types.Message) (toolCallsJSON sql.NullString, attachments []byte, err error) {
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return toolCallsJSON, nil, fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCallsJSON = sql.NullString{String: string(data), Valid: true}
	}
	if len(msg.Parts) > 0 {
		data, err := json.Marshal(msg.Parts)
		if err != nil {
			return toolCallsJSON, nil, fmt.Errorf("failed to marshal parts: %w", err)
		}
		attachments = s.encoder.EncodeAll(data, nil)
	}
	return toolCallsJSON, attachments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanMessage(row rowScanner) (types.Message, error) {
	var msg types.Message
	var role string
	var toolCallID, toolName, toolCallsJSON sql.NullString
	var attachments []byte
	var timestamp int64

	err := row.Scan(&role, &msg.Content, &toolCallID, &toolName,
		&toolCallsJSON, &attachments, &msg.TokenCount, &timestamp)
	if err != nil {
		return msg, fmt.Errorf("failed to scan message: %w", err)
	}
	return s.decodeMessage(msg, role, toolCallID, toolName, toolCallsJSON, attachments, timestamp)
}

func (s *Store) scanHit(row rowScanner, sessionID *string) (types.Message, error) {
	var msg types.Message
	var role string
	var toolCallID, toolName, toolCallsJSON sql.NullString
	var attachments []byte
	var timestamp int64

	err := row.Scan(sessionID, &role, &msg.Content, &toolCallID, &toolName,
		&toolCallsJSON, &attachments, &msg.TokenCount, &timestamp)
	if err != nil {
		return msg, fmt.Errorf("failed to scan message: %w", err)
	}
	return s.decodeMessage(msg, role, toolCallID, toolName, toolCallsJSON, attachments, timestamp)
}

func (s *Store) decodeMessage(msg types.Message, role string, toolCallID, toolName, toolCallsJSON sql.NullString, attachments []byte, timestamp int64) (types.Message, error) {
	msg.Role = types.Role(role)
	msg.ToolCallID = toolCallID.String
	msg.ToolName = toolName.String
	msg.Timestamp = time.Unix(0, timestamp)

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
