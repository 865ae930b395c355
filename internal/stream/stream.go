// ABOUTME: Streaming turn consumer driving one request/response cycle against the agent
// ABOUTME: Consumes SSE events, renders progressively and persists finished turns

package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ograin/shopassist/internal/markdown"
	"github.com/ograin/shopassist/internal/session"
	"github.com/ograin/shopassist/internal/store"
)

// FallbackNotice replaces the visible message when the transport fails.
const FallbackNotice = "Sorry, I couldn't process your request. Please try again later."

// defaultGuardrailNotice is shown when a guardrail event carries no
// advisory message of its own.
const defaultGuardrailNotice = "Sorry, your message could not be processed due to policy restrictions."

// TurnState is the lifecycle state of one streaming turn.
type TurnState int

const (
	Idle TurnState = iota
	AwaitingFirstEvent
	Streaming
	Done
	TransportError
	Guardrail
)

func (s TurnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstEvent:
		return "awaiting_first_event"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case TransportError:
		return "transport_error"
	case Guardrail:
		return "guardrail"
	default:
		return "unknown"
	}
}

// Sink is the presentation surface the consumer drives. It renders markup
// into a visible message list; implementations live outside this package.
type Sink interface {
	// ShowTyping displays the typing indicator when a turn opens.
	ShowTyping()
	// HideTyping removes the typing indicator (on the first chunk, or on
	// a terminal event that arrives before any chunk).
	HideTyping()
	// ShowUser displays a user message.
	ShowUser(text string)
	// RenderAssistant replaces the in-progress assistant message with a
	// fresh full render of the accumulated text.
	RenderAssistant(r markdown.Rendered)
	// ShowProducts displays a structured product list alongside the
	// message it was extracted from.
	ShowProducts(products []markdown.Product)
	// ReplaceWithNotice replaces the visible in-progress message with a
	// fixed notice.
	ReplaceWithNotice(text string)
}

// Client issues streaming turns and history lookups against the remote
// agent.
type Client struct {
	streamURL  string
	historyURL string
	userID     string
	welcome    string
	httpClient *http.Client
	store      store.Store
	renderer   *markdown.Renderer
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	StreamURL      string
	HistoryURL     string
	UserID         string
	WelcomeMessage string
	HTTPClient     *http.Client // defaults to http.DefaultClient
	Logger         *slog.Logger
}

// NewClient creates a streaming client persisting finished turns to st.
func NewClient(opts Options, st store.Store) (*Client, error) {
	if opts.StreamURL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		streamURL:  opts.StreamURL,
		historyURL: opts.HistoryURL,
		userID:     opts.UserID,
		welcome:    opts.WelcomeMessage,
		httpClient: httpClient,
		store:      st,
		renderer:   markdown.NewRenderer(),
		logger:     logger.With("component", "stream"),
	}, nil
}

// Send opens one streaming turn for the user message: persists the user
// message, issues the streaming request carrying the prior conversation
// correlator and user identifier, and drives the turn state machine until
// a terminal event. Returns session.ErrTurnActive if a turn is already in
// flight.
//
// Known gap: a turn that never receives a terminal event on a connection
// that stays open remains open indefinitely; there is no timeout or
// reconnection. A closed connection without a terminal event is treated
// as a transport error.
func (c *Client) Send(ctx context.Context, sess *session.Session, sink Sink, message string) error {
	if err := sess.BeginTurn(); err != nil {
		return err
	}
	defer sess.EndTurn()

	if err := c.store.AppendMessage(ctx, &store.Message{
		SessionID: sess.ID,
		Role:      store.RoleUser,
		Content:   message,
	}); err != nil {
		c.logger.Warn("failed to persist user message", "error", err)
	}
	sink.ShowUser(message)
	sink.ShowTyping()

	resp, err := c.openStream(ctx, sess, message)
	if err != nil {
		sink.HideTyping()
		sink.ReplaceWithNotice(FallbackNotice)
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	turn := &turn{
		client:  c,
		ctx:     ctx,
		sess:    sess,
		sink:    sink,
		message: message,
		state:   AwaitingFirstEvent,
	}
	turn.consume(resp.Body)

	c.logger.Debug("turn finished", "state", turn.state.String(), "session_id", sess.ID)
	return nil
}

// openStream issues the query-parameterized streaming request.
func (c *Client) openStream(ctx context.Context, sess *session.Session, message string) (*http.Response, error) {
	u, err := url.Parse(c.streamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing stream URL: %w", err)
	}

	q := u.Query()
	q.Set("message", message)
	if responseID := sess.ResponseID(); responseID != "" {
		q.Set("responseId", responseID)
	}
	if c.userID != "" {
		q.Set("userId", c.userID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return resp, nil
}
