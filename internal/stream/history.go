// ABOUTME: Conversation bootstrap and server-side history replay
// ABOUTME: Replays the in-tab log, falls back to correlator lookup, then the welcome message

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ograin/shopassist/internal/session"
	"github.com/ograin/shopassist/internal/store"
)

// historyResponse is the body of a history lookup.
type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

// historyMessage is one prior message in a history lookup response.
type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toolResultProbe detects user-role messages whose content is a serialized
// tool result rather than display prose.
type toolResultProbe struct {
	Type string `json:"type"`
}

// Bootstrap restores the visible conversation when the widget loads:
// replays the in-tab log if one exists; otherwise, when a conversation
// correlator survives, replays the server-side history for it; otherwise
// shows the welcome message. A failed or empty lookup falls back to the
// welcome message, and a failure additionally discards the stale
// correlator.
func (c *Client) Bootstrap(ctx context.Context, sess *session.Session, sink Sink) error {
	local, err := c.store.Messages(ctx, sess.ID)
	if err != nil {
		c.logger.Warn("failed to read local log", "error", err)
	}
	if len(local) > 0 {
		for _, msg := range local {
			c.replayMessage(sink, msg.Role, msg.Content)
		}
		return nil
	}

	responseID := sess.ResponseID()
	if responseID == "" {
		c.showWelcome(ctx, sess, sink)
		return nil
	}

	messages, err := c.fetchHistory(ctx, responseID)
	if err != nil {
		c.logger.Warn("history lookup failed, discarding correlator", "error", err)
		sess.ClearResponseID(ctx)
		c.showWelcome(ctx, sess, sink)
		return nil
	}
	if len(messages) == 0 {
		c.showWelcome(ctx, sess, sink)
		return nil
	}

	for _, msg := range messages {
		if isToolResult(msg) {
			continue
		}
		c.replayMessage(sink, msg.Role, msg.Content)
		if err := c.store.AppendMessage(ctx, &store.Message{
			SessionID: sess.ID,
			Role:      msg.Role,
			Content:   msg.Content,
		}); err != nil {
			c.logger.Warn("failed to persist replayed message", "error", err)
		}
	}
	return nil
}

// fetchHistory looks up prior messages by conversation id.
func (c *Client) fetchHistory(ctx context.Context, conversationID string) ([]historyMessage, error) {
	if c.historyURL == "" {
		return nil, fmt.Errorf("no history URL configured")
	}

	u, err := url.Parse(c.historyURL)
	if err != nil {
		return nil, fmt.Errorf("parsing history URL: %w", err)
	}
	q := u.Query()
	q.Set("history", "true")
	q.Set("conversation_id", conversationID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var history historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return history.Messages, nil
}

// replayMessage feeds one stored message into the sink without
// re-persisting it.
func (c *Client) replayMessage(sink Sink, role, content string) {
	if role == store.RoleUser {
		sink.ShowUser(content)
		return
	}
	rendered := c.renderer.Render(content)
	sink.RenderAssistant(rendered)
	if len(rendered.Products) > 0 {
		sink.ShowProducts(rendered.Products)
	}
}

// showWelcome displays and persists the default welcome message.
func (c *Client) showWelcome(ctx context.Context, sess *session.Session, sink Sink) {
	sink.RenderAssistant(c.renderer.Render(c.welcome))
	if err := c.store.AppendMessage(ctx, &store.Message{
		SessionID: sess.ID,
		Role:      store.RoleAssistant,
		Content:   c.welcome,
	}); err != nil {
		c.logger.Warn("failed to persist welcome message", "error", err)
	}
}

// isToolResult reports whether a history message is a tool result stored
// as a user-role message and should be filtered out of display.
func isToolResult(msg historyMessage) bool {
	if msg.Role != store.RoleUser || !strings.HasPrefix(msg.Content, "{") {
		return false
	}
	var probe toolResultProbe
	if err := json.Unmarshal([]byte(msg.Content), &probe); err != nil {
		return false
	}
	return probe.Type == "tool_result"
}
