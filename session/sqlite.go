package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. Message history
// and the context bag are stored as JSON columns, one row per session. The
// mutators are read-modify-write sequences over those columns, so a store
// level mutex serializes them; without it two concurrent AddMessage calls
// against the same session could drop a turn.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// schema. The connection pool is limited to a single connection to serialize
// writes, which SQLite requires.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS sessions (
			app_name   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			id         TEXT NOT NULL,
			messages   TEXT NOT NULL,
			context    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (app_name, user_id, id)
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// GetOrCreate returns the addressed session, inserting an empty one when it
// does not exist yet.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(ctx, appName, userID, sessionID)
}

// getOrCreateLocked resolves or inserts a session; caller must hold the lock.
func (s *SQLiteStore) getOrCreateLocked(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	if appName == "" || userID == "" || sessionID == "" {
		return nil, ErrEmptyID
	}

	sess, err := s.Get(ctx, appName, userID, sessionID)
	if err == nil {
		return sess, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	sess = NewSession(appName, userID, sessionID)
	if err := s.insert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the addressed session or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT messages, context, created_at, updated_at
		FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`,
		appName, userID, sessionID)

	var messagesJSON, contextJSON, createdAt, updatedAt string
	if err := row.Scan(&messagesJSON, &contextJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	return decodeSession(appName, userID, sessionID, messagesJSON, contextJSON, createdAt, updatedAt)
}

// AddMessage appends a message, creating the session when absent.
func (s *SQLiteStore) AddMessage(ctx context.Context, appName, userID, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getOrCreateLocked(ctx, appName, userID, sessionID)
	if err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess.Messages = append(sess.Messages, msg)
	return s.updateLocked(ctx, sess)
}

// GetMessages returns the most recent limit messages in chronological order,
// creating the session when absent.
func (s *SQLiteStore) GetMessages(ctx context.Context, appName, userID, sessionID string, limit int) ([]Message, error) {
	sess, err := s.GetOrCreate(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// UpdateContext merges a key/value delta into the session context bag,
// creating the session when absent.
func (s *SQLiteStore) UpdateContext(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getOrCreateLocked(ctx, appName, userID, sessionID)
	if err != nil {
		return err
	}
	for k, v := range delta {
		sess.Context[k] = v
	}
	return s.updateLocked(ctx, sess)
}

// UpdateSession overwrites an existing session with the provided snapshot.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, sess)
}

func (s *SQLiteStore) updateLocked(ctx context.Context, sess *Session) error {
	if sess.AppName == "" || sess.UserID == "" || sess.ID == "" {
		return ErrEmptyID
	}

	messagesJSON, contextJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET messages = ?, context = ?, updated_at = ?
		WHERE app_name = ? AND user_id = ? AND id = ?`,
		messagesJSON, contextJSON, time.Now().Format(time.RFC3339Nano),
		sess.AppName, sess.UserID, sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the addressed session.
func (s *SQLiteStore) Delete(ctx context.Context, appName, userID, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND id = ?`,
		appName, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns the sessions of one (app, user) partition ordered by most
// recently updated first.
func (s *SQLiteStore) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, messages, context, created_at, updated_at
		FROM sessions WHERE app_name = ? AND user_id = ?
		ORDER BY updated_at DESC`,
		appName, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var id, messagesJSON, contextJSON, createdAt, updatedAt string
		if err := rows.Scan(&id, &messagesJSON, &contextJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess, err := decodeSession(appName, userID, id, messagesJSON, contextJSON, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Stats reports store-wide totals.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT app_name), COUNT(DISTINCT user_id)
		FROM sessions`)
	if err := row.Scan(&stats.TotalSessions, &stats.Apps, &stats.Users); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT messages FROM sessions`)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messagesJSON string
		if err := rows.Scan(&messagesJSON); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		var msgs []Message
		if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
			return Stats{}, fmt.Errorf("decode messages: %w", err)
		}
		stats.TotalMessages += len(msgs)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) insert(ctx context.Context, sess *Session) error {
	messagesJSON, contextJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (app_name, user_id, id, messages, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.AppName, sess.UserID, sess.ID, messagesJSON, contextJSON,
		sess.Created.Format(time.RFC3339Nano), sess.Updated.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func encodeSession(sess *Session) (messagesJSON, contextJSON string, err error) {
	m, err := json.Marshal(sess.Messages)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	c, err := json.Marshal(sess.Context)
	if err != nil {
		return "", "", fmt.Errorf("encode context: %w", err)
	}
	return string(m), string(c), nil
}

func decodeSession(appName, userID, id, messagesJSON, contextJSON, createdAt, updatedAt string) (*Session, error) {
	sess := &Session{AppName: appName, UserID: userID, ID: id}

	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}

	var err error
	if sess.Created, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.Updated, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	if sess.Context == nil {
		sess.Context = map[string]any{}
	}
	return sess, nil
}
