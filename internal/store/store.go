// Package store provides the SQLite-backed conversation history for the
// thesis assistant: chat sessions and the messages inside them. History is
// persisted across server restarts and injected into the model context on
// follow-up questions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultTitle is assigned to sessions created without an explicit title.
const DefaultTitle = "New Chat"

// ErrSessionNotFound reports an operation that names a session id with no
// corresponding row.
var ErrSessionNotFound = errors.New("store: session not found")

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a session.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Session is one conversation thread owned by a user.
type Session struct {
	// ID is the session's UUID.
	ID string
	// UserID identifies the owning user. May be empty for anonymous chats.
	UserID string
	// Title is the display name shown in session lists.
	Title string
	// CreatedAt is when the session was created.
	CreatedAt time.Time
	// UpdatedAt is bumped every time a message is appended.
	UpdatedAt time.Time
}

// HistoryStore persists chat sessions and their messages. Implementations
// must be safe for concurrent use.
type HistoryStore interface {
	// CreateSession creates a new session for the user. An empty title
	// defaults to DefaultTitle.
	CreateSession(ctx context.Context, userID, title string) (Session, error)
	// Sessions returns the user's sessions ordered most recently updated
	// first.
	Sessions(ctx context.Context, userID string) ([]Session, error)
	// Messages returns every message in the session, oldest-first.
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	// DeleteSession removes the session and all of its messages. Deleting
	// an unknown session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error
	// RenameSession updates the session's display title. An empty title
	// defaults to DefaultTitle. Renaming an unknown session returns
	// ErrSessionNotFound.
	RenameSession(ctx context.Context, sessionID, title string) error
	// Append persists a single message and bumps the session's UpdatedAt.
	// Appending to an unknown session creates it.
	Append(ctx context.Context, sessionID string, role Role, content string) error
	// Recent returns the most recent n messages for the session, ordered
	// oldest-first so they can be fed to the model directly. If fewer than
	// n messages exist, all are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]Message, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the conversation history
// database. It resolves to ~/.adal/history.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".adal")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
//
// Timestamps are Unix nanoseconds: session lists order by updated_at, which
// has no tiebreaker column, so sub-second resolution matters.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id           TEXT    PRIMARY KEY,
    user_id      TEXT    NOT NULL,
    title        TEXT    NOT NULL,
    created_at   INTEGER NOT NULL,  -- Unix timestamp (nanoseconds)
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_updated
    ON chat_sessions (user_id, updated_at);

CREATE TABLE IF NOT EXISTS chat_messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session_created
    ON chat_messages (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession creates a new session for the user.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.UserID, sess.Title, now.UnixNano(), now.UnixNano()); err != nil {
		return Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// Sessions returns the user's sessions, most recently updated first.
func (s *SQLiteStore) Sessions(ctx context.Context, userID string) ([]Session, error) {
	const q = `
SELECT id, user_id, title, created_at, updated_at
FROM   chat_sessions
WHERE  user_id = ?
ORDER  BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("store: sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, updated int64
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: sessions scan: %w", err)
		}
		sess.CreatedAt = time.Unix(0, created)
		sess.UpdatedAt = time.Unix(0, updated)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sessions rows: %w", err)
	}
	return sessions, nil
}

// Messages returns every message in the session, oldest-first.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	const q = `
SELECT role, content, created_at
FROM   chat_messages
WHERE  session_id = ?
ORDER  BY created_at ASC, id ASC`

	return s.queryMessages(ctx, q, sessionID)
}

// DeleteSession removes the session and all of its messages in a single
// transaction. The message delete is explicit rather than relying on the
// foreign key cascade, which SQLite only enforces when the per-connection
// foreign_keys pragma is on.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete session begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: delete session commit: %w", err)
	}
	return nil
}

// RenameSession updates the session's display title. The title does not
// affect ordering, so updated_at is left alone.
func (s *SQLiteStore) RenameSession(ctx context.Context, sessionID, title string) error {
	if title == "" {
		title = DefaultTitle
	}
	res, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, sessionID)
	if err != nil {
		return fmt.Errorf("store: rename session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rename session rows: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Append persists a single message and bumps the session's updated_at so
// session lists surface the most recently active thread first. Appending to
// a session id that does not exist yet creates the session row, which lets
// clients mint their own session ids.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	now := time.Now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
VALUES (?, '', ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, sessionID, DefaultTitle, now, now); err != nil {
		return fmt.Errorf("store: append session upsert: %w", err)
	}

	const insert = `INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, sessionID, string(role), content, now); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append commit: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for injection.
func (s *SQLiteStore) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	return s.queryMessages(ctx, q, sessionID, n)
}

// queryMessages runs a message query and scans the rows into Messages.
func (s *SQLiteStore) queryMessages(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: messages scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(0, ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: messages rows: %w", err)
	}
	return msgs, nil
}

// Ping verifies the database connection is alive. Used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
