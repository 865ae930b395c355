// ABOUTME: Staged markdown-to-HTML renderer for assistant replies
// ABOUTME: Handles code fences, link classification, inline formatting and product blocks

package markdown

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
)

// Rendered is the output of one Render call: a markup fragment plus any
// product list extracted from an embedded data block.
type Rendered struct {
	HTML     template.HTML
	Products []Product
}

// Renderer converts raw assistant text to a markup fragment. It is not
// incremental: callers re-render the full accumulated text on every
// streaming chunk, because earlier partial markdown (an unterminated link
// or code fence) can be ambiguous and must be corrected once more text
// arrives.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

var (
	codeFenceRe = regexp.MustCompile("(?s)```(\\w+)?\\n?(.*?)```")
	imageBangRe = regexp.MustCompile(`!\[([^\]]*)\]`)
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	imageRe     = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)
	imageExtRe  = regexp.MustCompile(`(?i)\.(webp|png|jpg)(\?.*)?$`)

	headingRes = []struct {
		re  *regexp.Regexp
		tag string
	}{
		{regexp.MustCompile(`(?m)^###### (.*)$`), "h6"},
		{regexp.MustCompile(`(?m)^##### (.*)$`), "h5"},
		{regexp.MustCompile(`(?m)^#### (.*)$`), "h4"},
		{regexp.MustCompile(`(?m)^### (.*)$`), "h3"},
		{regexp.MustCompile(`(?m)^## (.*)$`), "h2"},
		{regexp.MustCompile(`(?m)^# (.*)$`), "h1"},
	}

	boldStarRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__(.*?)__`)
	italicStarRe = regexp.MustCompile(`\*(.*?)\*`)
)

// Render converts raw text into a markup fragment and extracts any product
// list. Safe to call repeatedly with a growing prefix of the final text;
// every call is a full re-render.
func (r *Renderer) Render(raw string) Rendered {
	return Rendered{
		HTML:     template.HTML(r.renderMarkup(raw)),
		Products: ExtractProducts(raw),
	}
}

// renderMarkup runs the transformation stages in order. The order is
// load-bearing: each stage must not corrupt markup already produced by an
// earlier one.
func (r *Renderer) renderMarkup(raw string) string {
	// Stage 1: fenced code blocks become escaped preformatted markup. The
	// result is parked behind placeholders so later line-oriented stages
	// cannot restructure its contents.
	text, blocks := extractCodeBlocks(raw)

	// Stage 2: strip the leading "!" from image markdown so the link
	// classification stage sees images as generic links. The dedicated
	// image stage below restores them as <img>.
	text = imageBangRe.ReplaceAllString(text, "[$1]")

	// Stage 3: classify links by destination.
	text = linkRe.ReplaceAllStringFunc(text, classifyLink)

	// Stage 4: headings, bold, italic.
	for _, h := range headingRes {
		text = h.re.ReplaceAllString(text, "<"+h.tag+">$1</"+h.tag+">")
	}
	text = boldStarRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = boldUnderRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicStarRe.ReplaceAllString(text, "<em>$1</em>")

	// Stage 5: remaining image markdown (none survives stage 2 in
	// practice, kept for direct <img> markdown with titles).
	text = imageRe.ReplaceAllStringFunc(text, renderImage)

	// Stage 6: remaining links become new-tab anchors.
	text = linkRe.ReplaceAllString(text,
		`<a href="$2" target="_blank" rel="noopener noreferrer">$1</a>`)

	// Stage 7: line-oriented block structuring.
	text = structureLines(text, blocks)

	return text
}

// extractCodeBlocks converts fenced code blocks into escaped <pre><code>
// markup and replaces them with indexed placeholders. A language hint is
// preserved as a class attribute for optional syntax highlighting.
func extractCodeBlocks(text string) (string, []string) {
	var blocks []string
	replaced := codeFenceRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := codeFenceRe.FindStringSubmatch(match)
		lang, code := sub[1], sub[2]

		escaped := html.EscapeString(code)
		languageClass := ""
		if lang != "" {
			languageClass = fmt.Sprintf(` class="language-%s"`, lang)
		}
		blocks = append(blocks, fmt.Sprintf(
			`<pre><code%s tabindex="0" aria-label="Code block">%s</code></pre>`,
			languageClass, escaped))
		return codeBlockToken(len(blocks) - 1)
	})
	return replaced, blocks
}

// codeBlockToken returns the placeholder line for a parked code block.
// The NUL bytes cannot appear in agent text, so the token never collides.
func codeBlockToken(i int) string {
	return fmt.Sprintf("\x00code:%d\x00", i)
}

// classifyLink rewrites a single markdown link according to its
// destination: authorization links become non-navigating trigger anchors
// carrying the captured URL, cart/checkout links get fixed call-to-action
// text, image links become inline thumbnails, everything else opens in a
// new tab.
func classifyLink(match string) string {
	sub := linkRe.FindStringSubmatch(match)
	label, url := sub[1], sub[2]

	switch {
	case isAuthURL(url):
		// Non-navigating trigger: the presentation surface routes the
		// click to the auth flow controller using data-auth-url.
		return fmt.Sprintf(`<a href="#auth" class="shop-auth-trigger" data-auth-url="%s">%s</a>`, url, label)

	case strings.Contains(url, "/cart") || strings.Contains(url, "checkout"):
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">click here to proceed to checkout</a>`, url)

	case imageExtRe.MatchString(url):
		return fmt.Sprintf(`<img src="%s&width=400" alt="%s" class="shop-ai-thumbnail-image" />`, url, label)

	default:
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, url, label)
	}
}

// isAuthURL reports whether a link destination enters the authorization
// flow.
func isAuthURL(url string) bool {
	return strings.Contains(url, "shopify.com/authentication") &&
		(strings.Contains(url, "oauth/authorize") || strings.Contains(url, "authentication"))
}

// renderImage converts one markdown image into an <img> with alt text and
// responsive sizing.
func renderImage(match string) string {
	sub := imageRe.FindStringSubmatch(match)
	alt, src, title := sub[1], sub[2], sub[3]

	titleAttr := ""
	if title != "" {
		titleAttr = fmt.Sprintf(` title="%s"`, title)
	}
	return fmt.Sprintf(
		`<img src="%s" alt="%s"%s style="max-width:100%%;border-radius:10px;margin:10px 0;" aria-label="%s">`,
		src, alt, titleAttr, alt)
}
