package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

// SQLiteConversationStore keeps conversations in a local SQLite file. A
// conversation untouched for longer than ttl reads as empty and is dropped.
type SQLiteConversationStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteConversationStore(path string, ttl time.Duration) (*SQLiteConversationStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create conversation db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention and keeps
	// :memory: databases alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteConversationStore{db: db, ttl: ttl, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteConversationStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteConversationStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			message_json TEXT NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init conversation db: %w", err)
		}
	}
	return nil
}

func (s *SQLiteConversationStore) expired(updatedMS int64) bool {
	return s.ttl > 0 && s.now().Sub(time.UnixMilli(updatedMS)) > s.ttl
}

func (s *SQLiteConversationStore) GetHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	var updatedMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at_ms FROM conversations WHERE conversation_id = ?`, conversationID).Scan(&updatedMS)
	if err == sql.ErrNoRows {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if s.expired(updatedMS) {
		if err := s.ClearHistory(ctx, conversationID); err != nil {
			return nil, err
		}
		return []*schema.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT message_json FROM conversation_messages
WHERE conversation_id = ?
ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*schema.Message, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var m schema.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", len(msgs), err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteConversationStore) AppendTurn(ctx context.Context, conversationID string, turn model.TurnRecord) error {
	msgs := turn.NewMessages()
	if len(msgs) == 0 && !turn.Rewrite {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append turn begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if turn.Rewrite {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, conversationID); err != nil {
			return fmt.Errorf("append turn reset: %w", err)
		}
	}

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM conversation_messages WHERE conversation_id = ?`, conversationID).Scan(&next); err != nil {
		return fmt.Errorf("append turn next seq: %w", err)
	}

	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		next++
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_messages(conversation_id, seq, message_json)
VALUES(?, ?, ?)`, conversationID, next, string(b)); err != nil {
			return fmt.Errorf("append turn insert: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO conversations(conversation_id, updated_at_ms) VALUES(?, ?)
ON CONFLICT(conversation_id) DO UPDATE SET updated_at_ms = excluded.updated_at_ms`,
		conversationID, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("append turn touch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append turn commit: %w", err)
	}
	return nil
}

func (s *SQLiteConversationStore) ClearHistory(ctx context.Context, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear history begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear history messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear history conversation: %w", err)
	}
	return tx.Commit()
}

var _ model.ConversationStore = (*SQLiteConversationStore)(nil)
