// ABOUTME: Tests for the conversation records query interface
// ABOUTME: Covers listing order, content filtering, date bounds and pagination

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConversations(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		session string
		role    string
		content string
		at      time.Time
	}{
		{"sess-old", RoleUser, "where are my boots", base},
		{"sess-old", RoleAssistant, "here are some boots", base.Add(time.Minute)},
		{"sess-new", RoleUser, "show me shirts", base.Add(time.Hour)},
		{"sess-new", RoleAssistant, "sure, shirts coming up", base.Add(time.Hour + time.Minute)},
		{"sess-new", RoleUser, "thanks", base.Add(2 * time.Hour)},
	}
	for _, row := range seed {
		require.NoError(t, s.AppendMessage(ctx, &Message{
			SessionID: row.session,
			Role:      row.role,
			Content:   row.content,
			CreatedAt: row.at,
		}))
	}
}

func TestRecords_ListOrderAndSummary(t *testing.T) {
	s := setupTestStore(t)
	seedConversations(t, s)

	summaries, err := s.ListConversations(context.Background(), ConversationFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recent activity first
	assert.Equal(t, "sess-new", summaries[0].SessionID)
	assert.Equal(t, "show me shirts", summaries[0].FirstMessage)
	assert.Equal(t, 3, summaries[0].MessageCount)

	assert.Equal(t, "sess-old", summaries[1].SessionID)
	assert.Equal(t, "where are my boots", summaries[1].FirstMessage)
	assert.Equal(t, 2, summaries[1].MessageCount)
}

func TestRecords_ContentFilter(t *testing.T) {
	s := setupTestStore(t)
	seedConversations(t, s)

	summaries, err := s.ListConversations(context.Background(), ConversationFilter{Query: "boots"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "sess-old", summaries[0].SessionID)
}

func TestRecords_DateRange(t *testing.T) {
	s := setupTestStore(t)
	seedConversations(t, s)

	since := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	summaries, err := s.ListConversations(context.Background(), ConversationFilter{Since: since})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "sess-new", summaries[0].SessionID)
}

func TestRecords_Pagination(t *testing.T) {
	s := setupTestStore(t)
	seedConversations(t, s)

	page, err := s.ListConversations(context.Background(), ConversationFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "sess-new", page[0].SessionID)

	page, err = s.ListConversations(context.Background(), ConversationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "sess-old", page[0].SessionID)
}

func TestRecords_Detail(t *testing.T) {
	s := setupTestStore(t)
	seedConversations(t, s)

	messages, err := s.ConversationDetail(context.Background(), "sess-old")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "where are my boots", messages[0].Content)
	assert.Equal(t, "here are some boots", messages[1].Content)
}
