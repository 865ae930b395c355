// ABOUTME: Tests for the session context state object
// ABOUTME: Covers correlator persistence, pending message lifecycle, polling identity and turn guard

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ograin/shopassist/internal/store"
)

func newTestSession(t *testing.T) (*Session, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	sess, err := New(context.Background(), "sess-test", st, nil)
	require.NoError(t, err)
	return sess, st
}

func TestSession_RequiresID(t *testing.T) {
	_, err := New(context.Background(), "", store.NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestSession_CorrelatorRoundTrip(t *testing.T) {
	sess, st := newTestSession(t)
	ctx := context.Background()

	assert.Empty(t, sess.ResponseID())

	sess.SetResponseID(ctx, "abc")
	assert.Equal(t, "abc", sess.ResponseID())

	// Survives a "reload": a new session context over the same store and
	// identity sees the persisted correlator
	reloaded, err := New(ctx, "sess-test", st, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", reloaded.ResponseID())
}

func TestSession_ClearCorrelator(t *testing.T) {
	sess, st := newTestSession(t)
	ctx := context.Background()

	sess.SetResponseID(ctx, "abc")
	sess.ClearResponseID(ctx)
	assert.Empty(t, sess.ResponseID())

	reloaded, err := New(ctx, "sess-test", st, nil)
	require.NoError(t, err)
	assert.Empty(t, reloaded.ResponseID())
}

func TestSession_PendingMessageLifecycle(t *testing.T) {
	sess, st := newTestSession(t)
	ctx := context.Background()

	sess.SetPendingMessage(ctx, "buy the boots")
	assert.Equal(t, "buy the boots", sess.PendingMessage())

	// Persisted across a navigation to the authorization surface
	reloaded, err := New(ctx, "sess-test", st, nil)
	require.NoError(t, err)
	assert.Equal(t, "buy the boots", reloaded.PendingMessage())

	// Take clears it
	taken := sess.TakePendingMessage(ctx)
	assert.Equal(t, "buy the boots", taken)
	assert.Empty(t, sess.PendingMessage())
	assert.Empty(t, sess.TakePendingMessage(ctx))
}

func TestSession_PollingIdentitySupersession(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	first := sess.MintPollingID(ctx)
	assert.True(t, sess.IsCurrentPollingID(first))

	second := sess.MintPollingID(ctx)
	assert.False(t, sess.IsCurrentPollingID(first), "older identity must become inert")
	assert.True(t, sess.IsCurrentPollingID(second))

	// Retiring a superseded identity does not disturb the current one
	sess.RetirePollingID(ctx, first)
	assert.True(t, sess.IsCurrentPollingID(second))

	sess.RetirePollingID(ctx, second)
	assert.False(t, sess.IsCurrentPollingID(second))
}

func TestSession_TurnGuard(t *testing.T) {
	sess, _ := newTestSession(t)

	require.NoError(t, sess.BeginTurn())
	assert.True(t, sess.TurnActive())

	err := sess.BeginTurn()
	assert.ErrorIs(t, err, ErrTurnActive)

	sess.EndTurn()
	assert.False(t, sess.TurnActive())
	assert.NoError(t, sess.BeginTurn())
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
