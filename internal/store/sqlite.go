// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides message log and session-state persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store and RecordQuerier using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages(session_id, created_at);

		CREATE TABLE IF NOT EXISTS session_state (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, key)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// AppendMessage appends a message to its session's log
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("appended message", "id", msg.ID, "session_id", msg.SessionID, "role", msg.Role)
	return nil
}

// Messages returns the session's log in insertion order
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// ClearMessages removes the session's entire log
func (s *SQLiteStore) ClearMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	return nil
}

// SetState stores a session-scoped key/value pair
func (s *SQLiteStore) SetState(ctx context.Context, sessionID, key, value string) error {
	query := `
		INSERT INTO session_state (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, sessionID, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("setting state %q: %w", key, err)
	}
	return nil
}

// GetState returns a session-scoped value.
// Returns ErrNotFound if the key has never been set.
func (s *SQLiteStore) GetState(ctx context.Context, sessionID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting state %q: %w", key, err)
	}
	return value, nil
}

// DeleteState removes a session-scoped key
func (s *SQLiteStore) DeleteState(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_state WHERE session_id = ? AND key = ?`,
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("deleting state %q: %w", key, err)
	}
	return nil
}

// ListConversations returns summaries of stored conversations, most recent
// activity first. Filter.Query matches message content; Since/Until bound
// message timestamps.
func (s *SQLiteStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]*ConversationSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "1=1"
	args := []any{}
	if filter.Query != "" {
		where += " AND content LIKE ?"
		args = append(args, "%"+filter.Query+"%")
	}
	if !filter.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
	}

	query := `
		SELECT m.session_id,
			(SELECT content FROM messages f
				WHERE f.session_id = m.session_id
				ORDER BY f.created_at ASC, f.rowid ASC LIMIT 1),
			MAX(m.created_at),
			COUNT(*)
		FROM messages m
		WHERE ` + where + `
		GROUP BY m.session_id
		ORDER BY MAX(m.created_at) DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var summary ConversationSummary
		var lastActivity string
		if err := rows.Scan(&summary.SessionID, &summary.FirstMessage, &lastActivity, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}
		summary.LastActivity, err = time.Parse(time.RFC3339Nano, lastActivity)
		if err != nil {
			return nil, fmt.Errorf("parsing last activity: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return summaries, nil
}

// ConversationDetail returns the full ordered log for a conversation
func (s *SQLiteStore) ConversationDetail(ctx context.Context, sessionID string) ([]*Message, error) {
	return s.Messages(ctx, sessionID)
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanMessage scans a message row, parsing its RFC3339 timestamp
func scanMessage(rows *sql.Rows) (*Message, error) {
	var msg Message
	var createdAt string
	if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing message timestamp: %w", err)
	}
	msg.CreatedAt = ts
	return &msg, nil
}
