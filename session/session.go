package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyID indicates a blank application, user or session identifier.
	ErrEmptyID = errors.New("session identifier must not be empty")
	// ErrNotFound indicates the addressed session does not exist.
	ErrNotFound = errors.New("session not found")
)

// Message is a single conversation turn stored in a session.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Session holds the message history and shared context of one conversation,
// addressed by the (app, user, id) triple.
type Session struct {
	AppName  string         `json:"app_name"`
	UserID   string         `json:"user_id"`
	ID       string         `json:"id"`
	Messages []Message      `json:"messages"`
	Context  map[string]any `json:"context"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
}

// NewSession creates an empty session for the given scope.
func NewSession(appName, userID, id string) *Session {
	now := time.Now()
	return &Session{
		AppName:  appName,
		UserID:   userID,
		ID:       id,
		Messages: []Message{},
		Context:  map[string]any{},
		Created:  now,
		Updated:  now,
	}
}

// Clone returns a deep copy so callers can never mutate store internals.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	return &out
}

// Stats summarizes the contents of a store.
type Stats struct {
	TotalSessions int `json:"total_sessions"`
	TotalMessages int `json:"total_messages"`
	Apps          int `json:"apps"`
	Users         int `json:"users"`
}

// Store is the session persistence interface. Implementations must be safe
// for concurrent use and must return cloned sessions.
type Store interface {
	// GetOrCreate returns the addressed session, creating it when absent.
	GetOrCreate(ctx context.Context, appName, userID, sessionID string) (*Session, error)

	// Get returns the addressed session or ErrNotFound.
	Get(ctx context.Context, appName, userID, sessionID string) (*Session, error)

	// AddMessage appends a message, creating the session when absent.
	AddMessage(ctx context.Context, appName, userID, sessionID string, msg Message) error

	// GetMessages returns the most recent limit messages in chronological
	// order, creating the session when absent. A limit <= 0 returns the
	// full history.
	GetMessages(ctx context.Context, appName, userID, sessionID string, limit int) ([]Message, error)

	// UpdateContext merges the delta into the session context bag,
	// creating the session when absent.
	UpdateContext(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error

	// UpdateSession overwrites an existing session. Unlike GetOrCreate it
	// fails with ErrNotFound for unknown sessions.
	UpdateSession(ctx context.Context, sess *Session) error

	// Delete removes the addressed session. Deleting an unknown session is
	// not an error.
	Delete(ctx context.Context, appName, userID, sessionID string) error

	// List returns the sessions of one (app, user) partition ordered by
	// most recently updated first.
	List(ctx context.Context, appName, userID string) ([]*Session, error)

	// Stats reports store-wide totals.
	Stats(ctx context.Context) (Stats, error)
}
