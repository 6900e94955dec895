package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

type scopeKey struct {
	app, user, id string
}

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo runs. Each returned session is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[scopeKey]*Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[scopeKey]*Session)}
}

// GetOrCreate returns an existing session (clone) or creates one lazily.
func (s *InMemoryStore) GetOrCreate(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	if appName == "" || userID == "" || sessionID == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(appName, userID, sessionID).Clone(), nil
}

// getOrCreateLocked resolves or allocates a session; caller must hold the
// write lock.
func (s *InMemoryStore) getOrCreateLocked(appName, userID, sessionID string) *Session {
	key := scopeKey{appName, userID, sessionID}
	sess, ok := s.sessions[key]
	if !ok {
		sess = NewSession(appName, userID, sessionID)
		s.sessions[key] = sess
	}
	return sess
}

// Get returns an existing session (clone) or ErrNotFound.
func (s *InMemoryStore) Get(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[scopeKey{appName, userID, sessionID}]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// AddMessage appends a message, creating the session when absent.
func (s *InMemoryStore) AddMessage(ctx context.Context, appName, userID, sessionID string, msg Message) error {
	if appName == "" || userID == "" || sessionID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(appName, userID, sessionID)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Updated = time.Now()
	return nil
}

// GetMessages returns the most recent limit messages in chronological order,
// creating the session when absent.
func (s *InMemoryStore) GetMessages(ctx context.Context, appName, userID, sessionID string, limit int) ([]Message, error) {
	if appName == "" || userID == "" || sessionID == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(appName, userID, sessionID)
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out, nil
}

// UpdateContext merges a key/value delta into the session context bag,
// creating the session when absent.
func (s *InMemoryStore) UpdateContext(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	if appName == "" || userID == "" || sessionID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(appName, userID, sessionID)
	for k, v := range delta {
		sess.Context[k] = v
	}
	sess.Updated = time.Now()
	return nil
}

// UpdateSession overwrites an existing session with the provided snapshot.
func (s *InMemoryStore) UpdateSession(ctx context.Context, sess *Session) error {
	if sess.AppName == "" || sess.UserID == "" || sess.ID == "" {
		return ErrEmptyID
	}

	key := scopeKey{sess.AppName, sess.UserID, sess.ID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return ErrNotFound
	}
	clone := sess.Clone()
	clone.Updated = time.Now()
	s.sessions[key] = clone
	return nil
}

// Delete removes the addressed session.
func (s *InMemoryStore) Delete(ctx context.Context, appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, scopeKey{appName, userID, sessionID})
	return nil
}

// List returns the sessions of one (app, user) partition ordered by most
// recently updated first.
func (s *InMemoryStore) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for key, sess := range s.sessions {
		if key.app == appName && key.user == userID {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out, nil
}

// Stats reports store-wide totals.
func (s *InMemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := map[string]bool{}
	users := map[string]bool{}
	messages := 0
	for key, sess := range s.sessions {
		apps[key.app] = true
		users[key.user] = true
		messages += len(sess.Messages)
	}

	return Stats{
		TotalSessions: len(s.sessions),
		TotalMessages: messages,
		Apps:          len(apps),
		Users:         len(users),
	}, nil
}
