// ABOUTME: In-memory Store implementation used when persistent storage is unavailable
// ABOUTME: Keeps the conversation log and session state for the process lifetime only

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with process-lifetime maps. It is the
// degraded mode used when SQLite cannot be opened: callers get an empty,
// non-persistent log instead of an error.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]*Message         // keyed by session ID
	state    map[string]map[string]string  // session ID -> key -> value
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]*Message),
		state:    make(map[string]map[string]string),
	}
}

// AppendMessage appends a message to its session's log
func (m *MemoryStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	// Copy so later caller mutation can't rewrite history
	stored := *msg

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &stored)
	return nil
}

// Messages returns the session's log in insertion order
func (m *MemoryStore) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.messages[sessionID]
	out := make([]*Message, len(stored))
	copy(out, stored)
	return out, nil
}

// ClearMessages removes the session's entire log
func (m *MemoryStore) ClearMessages(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, sessionID)
	return nil
}

// SetState stores a session-scoped key/value pair
func (m *MemoryStore) SetState(ctx context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state[sessionID] == nil {
		m.state[sessionID] = make(map[string]string)
	}
	m.state[sessionID][key] = value
	return nil
}

// GetState returns a session-scoped value, or ErrNotFound
func (m *MemoryStore) GetState(ctx context.Context, sessionID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.state[sessionID][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// DeleteState removes a session-scoped key
func (m *MemoryStore) DeleteState(ctx context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.state[sessionID]; ok {
		delete(state, key)
	}
	return nil
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}
