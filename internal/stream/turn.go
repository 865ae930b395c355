// ABOUTME: Per-turn SSE consumption and terminal event handling
// ABOUTME: Parses event/data lines and advances the turn state machine

package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ograin/shopassist/internal/session"
	"github.com/ograin/shopassist/internal/store"
)

// Recognized event names. Exactly these four are handled; others are
// ignored.
const (
	eventChunk     = "response.chunk"
	eventDone      = "response.done"
	eventError     = "error"
	eventGuardrail = "guardrail.triggered"
)

// chunkPayload is the body of a response.chunk event. The incremental text
// arrives in either the delta or the chunk field.
type chunkPayload struct {
	Delta string `json:"delta"`
	Chunk string `json:"chunk"`
}

// donePayload is the body of a response.done event.
type donePayload struct {
	ResponseID string `json:"responseId"`
}

// guardrailPayload is the body of a guardrail.triggered event.
type guardrailPayload struct {
	Message string `json:"message"`
}

// turn is the ephemeral state of one streaming turn. Created when a send
// begins, destroyed on any terminal event; never persisted while in
// flight.
type turn struct {
	client      *Client
	ctx         context.Context
	sess        *session.Session
	sink        Sink
	message     string // the user text that opened this turn
	state       TurnState
	accumulated strings.Builder
	firstChunk  bool // true once the first chunk removed the typing indicator
}

// consume reads SSE events from the transport until a terminal event or
// the stream ends. Events are delivered and processed in emission order.
// A stream that ends without a terminal event is treated as a transport
// error: the partial content is discarded, not persisted.
func (t *turn) consume(body io.Reader) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-t.ctx.Done():
			t.toTransportError()
			return
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventType != "" {
				data := strings.Join(dataLines, "\n")
				if terminal := t.handleEvent(eventType, data); terminal {
					return
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}

	// EOF (or read error) without a terminal event
	t.toTransportError()
}

// handleEvent processes one named event and reports whether it was
// terminal.
func (t *turn) handleEvent(eventType, data string) bool {
	switch eventType {
	case eventChunk:
		t.onChunk(data)
		return false

	case eventDone:
		t.onDone(data)
		return true

	case eventError:
		t.toTransportError()
		return true

	case eventGuardrail:
		t.onGuardrail(data)
		return true

	default:
		// Unknown events are ignored
		return false
	}
}

// onChunk appends the delta and re-renders the full accumulated text. The
// very first chunk removes the typing indicator.
func (t *turn) onChunk(data string) {
	if !t.firstChunk {
		t.sink.HideTyping()
		t.firstChunk = true
	}
	t.state = Streaming

	var payload chunkPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.client.logger.Debug("ignoring malformed chunk payload", "error", err)
		return
	}
	delta := payload.Delta
	if delta == "" {
		delta = payload.Chunk
	}
	t.accumulated.WriteString(delta)

	t.sink.RenderAssistant(t.client.renderer.Render(t.accumulated.String()))
}

// onDone performs the final render, surfaces any structured product list,
// stores the updated conversation correlator and persists the finished
// message.
func (t *turn) onDone(data string) {
	t.state = Done
	t.sink.HideTyping()

	rendered := t.client.renderer.Render(t.accumulated.String())
	t.sink.RenderAssistant(rendered)
	if len(rendered.Products) > 0 {
		t.sink.ShowProducts(rendered.Products)
	}

	var payload donePayload
	if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.ResponseID != "" {
		t.sess.SetResponseID(t.ctx, payload.ResponseID)
	}

	if err := t.client.store.AppendMessage(t.ctx, &store.Message{
		SessionID: t.sess.ID,
		Role:      store.RoleAssistant,
		Content:   t.accumulated.String(),
	}); err != nil {
		t.client.logger.Warn("failed to persist assistant message", "error", err)
	}
}

// toTransportError replaces the visible message with the fixed fallback
// notice. The partial content is discarded, not persisted.
func (t *turn) toTransportError() {
	if t.state == TransportError {
		return
	}
	t.state = TransportError
	t.sink.HideTyping()
	t.sink.ReplaceWithNotice(FallbackNotice)
}

// onGuardrail overwrites the accumulated text with the policy-supplied
// advisory message and persists it as the turn's content, unlike the
// transport-error path. The user text that opened the turn is saved as
// the pending message so the authorization flow can resubmit it.
func (t *turn) onGuardrail(data string) {
	t.state = Guardrail
	t.sink.HideTyping()
	t.sess.SetPendingMessage(t.ctx, t.message)

	var payload guardrailPayload
	_ = json.Unmarshal([]byte(data), &payload)
	advisory := payload.Message
	if advisory == "" {
		advisory = defaultGuardrailNotice
	}

	t.accumulated.Reset()
	t.accumulated.WriteString(advisory)
	t.sink.RenderAssistant(t.client.renderer.Render(advisory))

	if err := t.client.store.AppendMessage(t.ctx, &store.Message{
		SessionID: t.sess.ID,
		Role:      store.RoleAssistant,
		Content:   advisory,
	}); err != nil {
		t.client.logger.Warn("failed to persist guardrail message", "error", err)
	}
}
