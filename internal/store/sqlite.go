package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the SQLite-backed conversation store.
type SQLiteStore struct {
	db    *sql.DB
	locks *convLocks
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{
		db:    db,
		locks: newConvLocks(),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
//
// seq is a table-wide AUTOINCREMENT: within one conversation it is
// strictly increasing in insertion order, which is all the ordering
// contract requires.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_name TEXT,
		tool_call_id TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, msg Message) (Message, error) {
	if msg.ConversationID == "" {
		return Message{}, fmt.Errorf("append: empty conversation id")
	}
	if !validRole(msg.Role) {
		return Message{}, fmt.Errorf("append: invalid role %q", msg.Role)
	}

	unlock := s.locks.lock(msg.ConversationID)
	defer unlock()

	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("append: new message id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, msg.ConversationID, now, now)
	if err != nil {
		return Message{}, fmt.Errorf("append: upsert conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, tool_name, tool_call_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), msg.ConversationID, msg.Role, msg.Content,
		nullable(msg.ToolName), nullable(msg.ToolCallID), now)
	if err != nil {
		return Message{}, fmt.Errorf("append: insert message: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("append: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("append: commit: %w", err)
	}

	msg.ID = id.String()
	msg.Sequence = seq
	msg.CreatedAt = now
	return msg, nil
}

// ListOrdered implements Store.
func (s *SQLiteStore) ListOrdered(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, role, content, tool_name, tool_call_id, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{ConversationID: conversationID}
		var toolName, toolCallID sql.NullString
		if err := rows.Scan(&m.Sequence, &m.ID, &m.Role, &m.Content, &toolName, &toolCallID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ToolName = toolName.String
		m.ToolCallID = toolCallID.String
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return messages, nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) map[string]any {
	var convCount, msgCount int

	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&convCount)
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount)

	return map[string]any{
		"conversations": convCount,
		"messages":      msgCount,
		"storage":       "sqlite",
	}
}

// nullable maps "" to NULL so optional tool fields stay NULL in the
// schema rather than empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
