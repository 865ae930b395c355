// ABOUTME: Tests for HTML transcript export
// ABOUTME: Verifies markdown conversion and user text escaping

package transcript

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ograin/shopassist/internal/store"
)

func TestExport_ConvertsAssistantMarkdown(t *testing.T) {
	messages := []*store.Message{
		{ID: "m1", Role: store.RoleUser, Content: "show me <script>alert(1)</script>", CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "m2", Role: store.RoleAssistant, Content: "Here is **one** option", CreatedAt: time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "sess-1", messages))
	html := buf.String()

	assert.Contains(t, html, "<strong>one</strong>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "Conversation sess-1")
	assert.Contains(t, html, "2026-03-01 10:00:05")
}

func TestExport_EmptyConversation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "sess-empty", nil))
	assert.Contains(t, buf.String(), "Conversation transcript")
}
