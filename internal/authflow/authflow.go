// ABOUTME: Authorization popup flow and identity-guarded token polling
// ABOUTME: Resumes the interrupted conversation once the shopper authorizes

package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ograin/shopassist/internal/session"
	"github.com/ograin/shopassist/internal/stream"
)

// Fixed notices shown to the shopper during the authorization flow.
const (
	InProgressNotice   = "Authentication in progress. Please complete the process in the popup window."
	AuthorizedNotice   = "Authorization successful! I'm now continuing with your request."
	PopupBlockedNotice = "Please allow popups for this site to authenticate with Shopify."
)

// Surface opens the authorization popup. Implementations live with the
// presentation layer; a blocked popup returns an error.
type Surface interface {
	OpenPopup(url string, width, height int) error
}

// Sink is the presentation surface the controller drives: auth notices
// plus the streaming sink needed to resume the interrupted turn.
type Sink interface {
	stream.Sink
	// ShowNotice displays a standalone assistant-side notice.
	ShowNotice(text string)
}

// Controller drives one authorization flow: popup, bounded status
// polling, and conversation resumption. Only the most recently minted
// polling identity is live; older loops notice they were superseded on
// their next tick and go inert.
type Controller struct {
	client       *stream.Client
	surface      Surface
	statusURL    string
	httpClient   *http.Client
	initialDelay time.Duration
	interval     time.Duration
	maxAttempts  int
	popupWidth   int
	popupHeight  int
	logger       *slog.Logger
}

// Options configures a Controller.
type Options struct {
	Client       *stream.Client
	Surface      Surface
	StatusURL    string
	HTTPClient   *http.Client  // defaults to http.DefaultClient
	InitialDelay time.Duration // defaults to 2s
	Interval     time.Duration // defaults to 10s
	MaxAttempts  int           // defaults to 30
	PopupWidth   int           // defaults to 600
	PopupHeight  int           // defaults to 700
	Logger       *slog.Logger
}

// NewController creates an authorization flow controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("stream client is required")
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("popup surface is required")
	}
	if opts.StatusURL == "" {
		return nil, fmt.Errorf("auth status URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	initialDelay := opts.InitialDelay
	if initialDelay == 0 {
		initialDelay = 2 * time.Second
	}
	interval := opts.Interval
	if interval == 0 {
		interval = 10 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 30
	}
	popupWidth := opts.PopupWidth
	if popupWidth == 0 {
		popupWidth = 600
	}
	popupHeight := opts.PopupHeight
	if popupHeight == 0 {
		popupHeight = 700
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		client:       opts.Client,
		surface:      opts.Surface,
		statusURL:    opts.StatusURL,
		httpClient:   httpClient,
		initialDelay: initialDelay,
		interval:     interval,
		maxAttempts:  maxAttempts,
		popupWidth:   popupWidth,
		popupHeight:  popupHeight,
		logger:       logger.With("component", "authflow"),
	}, nil
}

// Trigger runs when the shopper activates an authorization link: opens
// the popup and, when a conversation correlator exists, starts the status
// polling loop that will resume the interrupted turn. A blocked popup
// surfaces an instruction notice instead of failing silently.
func (c *Controller) Trigger(ctx context.Context, sess *session.Session, sink Sink, authURL string) {
	if err := c.surface.OpenPopup(authURL, c.popupWidth, c.popupHeight); err != nil {
		c.logger.Warn("authorization popup blocked", "error", err)
		sink.ShowNotice(PopupBlockedNotice)
		return
	}

	// Nothing to resume without a conversation to correlate the grant to.
	if sess.ResponseID() == "" {
		c.logger.Debug("no conversation correlator, skipping status polling")
		return
	}

	sink.ShowNotice(InProgressNotice)

	pollingID := sess.MintPollingID(ctx)
	c.logger.Info("starting authorization polling", "polling_id", pollingID)
	go c.poll(ctx, sess, sink, pollingID)
}

// poll checks authorization status on a fixed cadence until authorized,
// superseded, cancelled, or out of attempts. Check failures are retried
// on the same schedule. Exhaustion ends the loop without a user-visible
// notice.
func (c *Controller) poll(ctx context.Context, sess *session.Session, sink Sink, pollingID string) {
	conversationID := sess.ResponseID()

	timer := time.NewTimer(c.initialDelay)
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !sess.IsCurrentPollingID(pollingID) {
			c.logger.Debug("superseded by a newer polling loop", "polling_id", pollingID)
			return
		}

		authorized, err := c.checkStatus(ctx, conversationID)
		if err != nil {
			c.logger.Warn("authorization status check failed", "attempt", attempt, "error", err)
		} else if authorized {
			c.resume(ctx, sess, sink, pollingID)
			return
		}

		timer.Reset(c.interval)
	}

	c.logger.Warn("authorization polling attempts exhausted", "polling_id", pollingID)
}

// resume retires the polling identity, recovers the message that was
// pending when the guardrail interrupted the turn, and replays it.
func (c *Controller) resume(ctx context.Context, sess *session.Session, sink Sink, pollingID string) {
	sess.RetirePollingID(ctx, pollingID)

	message := sess.TakePendingMessage(ctx)
	if message == "" {
		c.logger.Info("authorized with no pending message")
		return
	}

	sink.ShowNotice(AuthorizedNotice)
	if err := c.client.Send(ctx, sess, sink, message); err != nil {
		c.logger.Error("failed to resume conversation", "error", err)
	}
}

// checkStatus asks the agent whether the conversation is authorized.
func (c *Controller) checkStatus(ctx context.Context, conversationID string) (bool, error) {
	u, err := url.Parse(c.statusURL)
	if err != nil {
		return false, fmt.Errorf("parsing status URL: %w", err)
	}
	q := u.Query()
	q.Set("conversation_id", conversationID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("checking status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("parsing response: %w", err)
	}
	return payload.Status == "authorized", nil
}
