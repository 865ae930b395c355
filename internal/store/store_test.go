// ABOUTME: Tests for the SQLite store: message log ordering, state keys, fallback
// ABOUTME: Uses temporary databases via t.TempDir

package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_AppendAndReadBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	err = store.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleAssistant, Content: "hello"})
	require.NoError(t, err)

	messages, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third", "fourth", "fifth"}
	for _, c := range contents {
		require.NoError(t, store.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleUser, Content: c}))
	}

	messages, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, messages, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, messages[i].Content)
	}
}

func TestStore_SessionScoping(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, &Message{SessionID: "sess-a", Role: RoleUser, Content: "a"}))
	require.NoError(t, store.AppendMessage(ctx, &Message{SessionID: "sess-b", Role: RoleUser, Content: "b"}))

	messages, err := store.Messages(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].Content)
}

func TestStore_ClearMessages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleUser, Content: "hi"}))
	require.NoError(t, store.ClearMessages(ctx, "sess-1"))

	messages, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestStore_State(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetState(ctx, "sess-1", StateResponseID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetState(ctx, "sess-1", StateResponseID, "abc"))

	value, err := store.GetState(ctx, "sess-1", StateResponseID)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	// Overwrite
	require.NoError(t, store.SetState(ctx, "sess-1", StateResponseID, "def"))
	value, err = store.GetState(ctx, "sess-1", StateResponseID)
	require.NoError(t, err)
	assert.Equal(t, "def", value)

	// Scoped per session
	_, err = store.GetState(ctx, "sess-2", StateResponseID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteState(ctx, "sess-1", StateResponseID))
	_, err = store.GetState(ctx, "sess-1", StateResponseID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleUser, Content: "hi"}))
	require.NoError(t, first.SetState(ctx, "sess-1", StateResponseID, "abc"))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	messages, err := second.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	value, err := second.GetState(ctx, "sess-1", StateResponseID)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestOpen_FallsBackToMemory(t *testing.T) {
	// A path whose parent can't be created forces the fallback
	badPath := filepath.Join("/dev/null", "nope", "test.db")

	s := Open(badPath, slog.Default())
	defer s.Close()

	_, ok := s.(*MemoryStore)
	assert.True(t, ok, "expected in-memory fallback for unusable path")

	// Degraded mode still accepts the full interface
	ctx := context.Background()
	require.NoError(t, s.AppendMessage(ctx, &Message{SessionID: "sess-1", Role: RoleUser, Content: "hi"}))
	messages, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestOpen_EmptyPathUsesMemory(t *testing.T) {
	s := Open("", nil)
	defer s.Close()

	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
