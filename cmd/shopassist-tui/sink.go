// ABOUTME: Terminal presentation surface for the chat client
// ABOUTME: Streams assistant output progressively and surfaces products and auth links

package main

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/ograin/shopassist/internal/markdown"
)

var (
	authURLAttrRe = regexp.MustCompile(`data-auth-url="([^"]+)"`)
	blockCloseRe  = regexp.MustCompile(`</(p|li|ol|ul|h[1-6]|pre)>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
)

// terminalSink prints the conversation to stdout. Assistant renders
// arrive as full re-renders of the growing message; the sink prints only
// the new suffix so streaming looks incremental.
type terminalSink struct {
	mu           sync.Mutex
	printed      string
	typing       bool
	lastProducts []markdown.Product
	lastAuthURL  string
}

func (s *terminalSink) ShowTyping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = true
	fmt.Println(color.HiBlackString("[assistant is typing...]"))
}

func (s *terminalSink) HideTyping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = false
}

func (s *terminalSink) ShowUser(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printed = ""
	fmt.Printf("%s %s\n", color.BlueString("you:"), text)
}

func (s *terminalSink) RenderAssistant(r markdown.Rendered) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := htmlToText(string(r.HTML))
	if s.printed == "" {
		fmt.Printf("%s ", color.GreenString("assistant:"))
	}
	if strings.HasPrefix(text, s.printed) {
		fmt.Print(text[len(s.printed):])
	} else {
		// The render restructured earlier output (a list closed, a code
		// fence completed). Reprint the whole message.
		fmt.Printf("\n%s %s", color.GreenString("assistant:"), text)
	}
	s.printed = text

	if m := authURLAttrRe.FindStringSubmatch(string(r.HTML)); m != nil {
		s.lastAuthURL = html.UnescapeString(m[1])
	}
}

func (s *terminalSink) ShowProducts(products []markdown.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProducts = products

	fmt.Println()
	for i, p := range products {
		fmt.Printf("  %s %s  %s\n",
			color.CyanString("[%d]", i+1), p.Title, color.HiBlackString(p.Price))
	}
	fmt.Println(color.HiBlackString("  /add <n> to add a product to your cart"))
}

func (s *terminalSink) ReplaceWithNotice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printed = ""
	fmt.Printf("\n%s %s\n", color.RedString("assistant:"), text)
}

func (s *terminalSink) ShowNotice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printed = ""
	fmt.Printf("%s %s\n", color.YellowString("notice:"), text)
}

// OpenPopup prints the authorization link; a terminal cannot open a
// browser window itself.
func (s *terminalSink) OpenPopup(url string, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("%s open this link in your browser to authorize (%dx%d window recommended):\n  %s\n",
		color.YellowString("auth:"), width, height, url)
	return nil
}

// endTurn resets the streaming print state between turns.
func (s *terminalSink) endTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.printed != "" {
		fmt.Println()
	}
	s.printed = ""
}

// pendingAuthURL returns and keeps the most recent authorization link.
func (s *terminalSink) pendingAuthURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthURL
}

// productAt returns the 1-based product from the most recent list.
func (s *terminalSink) productAt(n int) (markdown.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.lastProducts) {
		return markdown.Product{}, false
	}
	return s.lastProducts[n-1], true
}

// htmlToText flattens rendered markup into plain terminal text.
func htmlToText(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<li>", "\n  - ")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimRight(s, "\n")
}
