// ABOUTME: Explicit session context for one browser-tab chat session
// ABOUTME: Holds the correlator, pending message, polling generation and active-turn guard

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ograin/shopassist/internal/store"
)

// ErrTurnActive is returned by BeginTurn while a streaming turn is already
// in flight. Sends are rejected rather than queued or merged.
var ErrTurnActive = errors.New("a streaming turn is already active")

// Session is the explicit state object for one tab-scoped chat session.
// It replaces ambient lookups: the session identity, conversation
// correlator, pending message and current polling identity are all fields
// here, each with a single writer at a time behind the mutex.
type Session struct {
	// ID is the opaque session identity, minted once per tab lifetime and
	// stable across reloads within the tab.
	ID string

	store  store.Store
	logger *slog.Logger

	mu         sync.Mutex
	responseID string // conversation correlator; empty before the first completed turn
	pending    string // message saved across an authorization redirect
	pollingID  string // only the most recently minted identity is current
	turnActive bool
}

// New creates a session context bound to the given identity, loading any
// persisted correlator and pending message from the store so they survive
// a reload within the tab lifetime.
func New(ctx context.Context, id string, st store.Store, logger *slog.Logger) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		ID:     id,
		store:  st,
		logger: logger.With("component", "session", "session_id", id),
	}

	if responseID, err := st.GetState(ctx, id, store.StateResponseID); err == nil {
		s.responseID = responseID
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading correlator: %w", err)
	}

	if pending, err := st.GetState(ctx, id, store.StatePendingMessage); err == nil {
		s.pending = pending
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading pending message: %w", err)
	}

	return s, nil
}

// NewID mints a fresh opaque session identity.
func NewID() string {
	return "sess_" + uuid.New().String()
}

// ResponseID returns the conversation correlator, or empty before the
// first completed turn.
func (s *Session) ResponseID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseID
}

// SetResponseID stores the correlator returned by a completed turn. It is
// updated only on successful turn completion.
func (s *Session) SetResponseID(ctx context.Context, responseID string) {
	s.mu.Lock()
	s.responseID = responseID
	s.mu.Unlock()

	if err := s.store.SetState(ctx, s.ID, store.StateResponseID, responseID); err != nil {
		s.logger.Warn("failed to persist correlator", "error", err)
	}
}

// ClearResponseID discards a stale correlator (e.g. after a failed history
// lookup).
func (s *Session) ClearResponseID(ctx context.Context) {
	s.mu.Lock()
	s.responseID = ""
	s.mu.Unlock()

	if err := s.store.DeleteState(ctx, s.ID, store.StateResponseID); err != nil {
		s.logger.Warn("failed to clear correlator", "error", err)
	}
}

// SetPendingMessage saves the user text that triggered an authorization
// requirement so it can be resubmitted after authorization succeeds.
func (s *Session) SetPendingMessage(ctx context.Context, message string) {
	s.mu.Lock()
	s.pending = message
	s.mu.Unlock()

	if err := s.store.SetState(ctx, s.ID, store.StatePendingMessage, message); err != nil {
		s.logger.Warn("failed to persist pending message", "error", err)
	}
}

// TakePendingMessage returns the saved pending message and clears it.
// Returns empty when nothing is pending.
func (s *Session) TakePendingMessage(ctx context.Context) string {
	s.mu.Lock()
	message := s.pending
	s.pending = ""
	s.mu.Unlock()

	if message != "" {
		if err := s.store.DeleteState(ctx, s.ID, store.StatePendingMessage); err != nil {
			s.logger.Warn("failed to clear pending message", "error", err)
		}
	}
	return message
}

// PendingMessage returns the saved pending message without clearing it.
func (s *Session) PendingMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// MintPollingID creates a fresh polling identity and records it as
// current. Any older, still-running polling loop becomes inert once
// superseded: it is not cancelled, it simply fails the identity check on
// its next tick.
func (s *Session) MintPollingID(ctx context.Context) string {
	id := "polling_" + uuid.New().String()

	s.mu.Lock()
	s.pollingID = id
	s.mu.Unlock()

	if err := s.store.SetState(ctx, s.ID, store.StatePollingID, id); err != nil {
		s.logger.Warn("failed to persist polling identity", "error", err)
	}
	return id
}

// IsCurrentPollingID reports whether the given identity is still the
// authoritative one.
func (s *Session) IsCurrentPollingID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollingID == id
}

// RetirePollingID clears the current polling identity if it still matches,
// so no further polling occurs for the attempt that owned it.
func (s *Session) RetirePollingID(ctx context.Context, id string) {
	s.mu.Lock()
	if s.pollingID != id {
		s.mu.Unlock()
		return
	}
	s.pollingID = ""
	s.mu.Unlock()

	if err := s.store.DeleteState(ctx, s.ID, store.StatePollingID); err != nil {
		s.logger.Warn("failed to clear polling identity", "error", err)
	}
}

// BeginTurn marks a streaming turn as active. Exactly one turn may be
// active per session; a second send is rejected with ErrTurnActive.
func (s *Session) BeginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnActive {
		return ErrTurnActive
	}
	s.turnActive = true
	return nil
}

// EndTurn marks the active turn as finished. Called on every terminal
// event.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnActive = false
}

// TurnActive reports whether a streaming turn is in flight.
func (s *Session) TurnActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnActive
}
