// ABOUTME: Store interface and data types for shop-assist conversation persistence
// ABOUTME: Defines Message, session-state keys and the conversation records query contract

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role constants for message senders
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single entry in a session's conversation log.
// Messages are append-only: never mutated after creation, only appended
// or cleared as a whole log.
type Message struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Content   string // raw text (markdown, possibly with an embedded data block)
	CreatedAt time.Time
}

// Session-state keys. All state is scoped to a single session identity;
// there are no cross-session reads.
const (
	StateResponseID     = "response_id"     // conversation correlator from the agent
	StatePendingMessage = "pending_message" // message saved across an auth redirect
	StatePollingID      = "polling_id"      // current auth polling identity
)

// Store persists a session-scoped conversation log plus a small
// session-state key/value area.
type Store interface {
	// AppendMessage appends a message to its session's log. Monotonic:
	// prior entries are never reordered or removed.
	AppendMessage(ctx context.Context, msg *Message) error

	// Messages returns the session's log in insertion order.
	Messages(ctx context.Context, sessionID string) ([]*Message, error)

	// ClearMessages removes the session's entire log.
	ClearMessages(ctx context.Context, sessionID string) error

	// SetState stores a session-scoped key/value pair, replacing any
	// existing value.
	SetState(ctx context.Context, sessionID, key, value string) error

	// GetState returns a session-scoped value. Returns ErrNotFound if the
	// key has never been set (or was deleted).
	GetState(ctx context.Context, sessionID, key string) (string, error)

	// DeleteState removes a session-scoped key. Deleting an absent key is
	// not an error.
	DeleteState(ctx context.Context, sessionID, key string) error

	Close() error
}

// ConversationFilter narrows a conversation records query.
// Zero values mean "no constraint"; Limit defaults to 50.
type ConversationFilter struct {
	Query  string // substring match against message content
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// ConversationSummary is one row of a conversation records listing.
type ConversationSummary struct {
	SessionID    string
	FirstMessage string
	LastActivity time.Time
	MessageCount int
}

// RecordQuerier is the contract the admin record pages consume. The pages
// themselves live outside this module; this interface is their only view
// into stored conversations.
type RecordQuerier interface {
	ListConversations(ctx context.Context, filter ConversationFilter) ([]*ConversationSummary, error)
	ConversationDetail(ctx context.Context, sessionID string) ([]*Message, error)
}

// Open returns a SQLite-backed store at path, falling back to an in-memory
// store when path is empty or the database cannot be opened. Storage
// unavailability degrades to a non-persistent log rather than failing the
// caller.
func Open(path string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return NewMemoryStore()
	}
	s, err := NewSQLiteStore(path)
	if err != nil {
		logger.Warn("sqlite store unavailable, using in-memory log", "path", path, "error", err)
		return NewMemoryStore()
	}
	return s
}
