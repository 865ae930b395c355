// ABOUTME: Line-oriented block structuring for rendered markup
// ABOUTME: Explicit state machine producing ordered lists, nested unordered lists and paragraphs

package markdown

import (
	"regexp"
	"strings"
)

var (
	orderedItemRe  = regexp.MustCompile(`^(\d+)[.)]\s+(.*)`)
	nestedItemRe   = regexp.MustCompile(`^-\s+(.*)`)
	leadingSpaceRe = regexp.MustCompile(`^ {0,3}`)
)

// listState tracks where the block structurer is within list markup.
type listState int

const (
	noList listState = iota
	inOrdered
	inOrderedWithNested
)

// blockWriter is the line-by-line state machine that turns inline-rendered
// text into block structure. Ordered items open or extend an <ol>
// preserving the first encountered start number; dash lines following an
// ordered item become a nested <ul> inside the current <li>; blank lines
// are separators only; any other line becomes a paragraph unless it is
// already markup.
type blockWriter struct {
	out    strings.Builder
	state  listState
	inItem bool // an <li> of the ordered list is open
	blocks []string
}

// structureLines applies block structuring to inline-rendered text,
// restoring parked code blocks along the way.
func structureLines(text string, blocks []string) string {
	w := &blockWriter{blocks: blocks}
	for _, line := range strings.Split(text, "\n") {
		w.writeLine(leadingSpaceRe.ReplaceAllString(line, ""))
	}
	w.closeAll()
	return w.out.String()
}

func (w *blockWriter) writeLine(line string) {
	if m := orderedItemRe.FindStringSubmatch(line); m != nil {
		w.writeOrderedItem(m[1], m[2])
		return
	}
	if m := nestedItemRe.FindStringSubmatch(line); m != nil && w.inItem {
		w.writeNestedItem(m[1])
		return
	}
	if strings.TrimSpace(line) == "" {
		// Blank lines separate blocks but never produce empty paragraphs.
		return
	}
	w.writeBlock(line)
}

// writeOrderedItem opens the ordered list if needed (preserving the first
// start number) and starts a new item, closing any previous item and its
// nested list.
func (w *blockWriter) writeOrderedItem(number, content string) {
	if w.state == noList {
		w.out.WriteString(`<ol start="` + number + `">`)
		w.state = inOrdered
	}
	if w.inItem {
		if w.state == inOrderedWithNested {
			w.out.WriteString("</ul>")
			w.state = inOrdered
		}
		w.out.WriteString("</li>")
	}
	w.out.WriteString(listItem(content))
	w.inItem = true
}

// writeNestedItem adds an item to the nested unordered list inside the
// current ordered item, opening the <ul> on the first one.
func (w *blockWriter) writeNestedItem(content string) {
	if w.state != inOrderedWithNested {
		w.out.WriteString("<ul>")
		w.state = inOrderedWithNested
	}
	w.out.WriteString(listItem(content) + "</li>")
}

// writeBlock closes any open list and emits a non-list line: parked code
// blocks and lines that are already inline markup pass through unwrapped,
// everything else becomes a paragraph.
func (w *blockWriter) writeBlock(line string) {
	w.closeAll()

	if restored, ok := w.restoreCodeBlock(line); ok {
		w.out.WriteString(restored)
		return
	}
	if strings.HasPrefix(line, "<img") {
		w.out.WriteString(line)
		return
	}
	w.out.WriteString("<p>" + w.restoreInlineTokens(line) + "</p>")
}

// closeAll closes any open list and item tags. Called when leaving list
// context and when input ends while a list is open.
func (w *blockWriter) closeAll() {
	if w.state == inOrderedWithNested {
		w.out.WriteString("</ul>")
	}
	if w.inItem {
		w.out.WriteString("</li>")
		w.inItem = false
	}
	if w.state != noList {
		w.out.WriteString("</ol>")
		w.state = noList
	}
}

// restoreCodeBlock returns the parked markup when the line is exactly a
// code block placeholder.
func (w *blockWriter) restoreCodeBlock(line string) (string, bool) {
	for i, block := range w.blocks {
		if line == codeBlockToken(i) {
			return block, true
		}
	}
	return "", false
}

// restoreInlineTokens substitutes placeholders that ended up embedded in a
// longer line.
func (w *blockWriter) restoreInlineTokens(line string) string {
	if !strings.Contains(line, "\x00") {
		return line
	}
	for i, block := range w.blocks {
		line = strings.ReplaceAll(line, codeBlockToken(i), block)
	}
	return line
}

// listItem renders one <li>, suppressing the bullet marker when the item's
// content is an inline image.
func listItem(content string) string {
	if strings.Contains(content, "<img") {
		return `<li style="list-style-type: none">` + content
	}
	return "<li>" + content
}
