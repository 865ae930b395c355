// ABOUTME: HTML transcript export for stored conversations
// ABOUTME: Converts assistant markdown with goldmark, escapes user text

package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"

	"github.com/ograin/shopassist/internal/store"
)

var pageTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Conversation {{.SessionID}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 640px; margin: 2rem auto; padding: 0 1rem; }
.msg { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 10px; }
.msg.user { background: #eef2ff; }
.msg.assistant { background: #f4f4f5; }
.role { font-size: 0.75rem; color: #666; text-transform: uppercase; margin-bottom: 0.25rem; }
.time { font-size: 0.7rem; color: #999; }
</style>
</head>
<body>
<h1>Conversation transcript</h1>
{{range .Messages}}<div class="msg {{.Role}}">
<div class="role">{{.Role}}</div>
{{.Body}}
<div class="time">{{.Time}}</div>
</div>
{{end}}</body>
</html>
`))

type pageMessage struct {
	Role string
	Body template.HTML
	Time string
}

// Export writes a standalone HTML document of the conversation to w.
// Assistant bodies are converted from markdown; user bodies are escaped
// verbatim.
func Export(w io.Writer, sessionID string, messages []*store.Message) error {
	page := struct {
		SessionID string
		Messages  []pageMessage
	}{SessionID: sessionID}

	for _, msg := range messages {
		var body template.HTML
		if msg.Role == store.RoleAssistant {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(msg.Content), &buf); err != nil {
				return fmt.Errorf("converting message %s: %w", msg.ID, err)
			}
			body = template.HTML(buf.String())
		} else {
			body = template.HTML("<p>" + template.HTMLEscapeString(msg.Content) + "</p>")
		}
		page.Messages = append(page.Messages, pageMessage{
			Role: msg.Role,
			Body: body,
			Time: msg.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	if err := pageTmpl.Execute(w, page); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}
