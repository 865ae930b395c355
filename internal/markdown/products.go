// ABOUTME: Structured product list extraction from fenced data blocks
// ABOUTME: Best-effort JSON parsing isolated from the markup-producing pass

package markdown

import (
	"encoding/json"
	"regexp"
)

// Product is one structured result embedded in an assistant reply. It is
// rendered but not persisted separately from the message text it came
// from.
type Product struct {
	VariantID string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	ImageURL  string `json:"image_url"`
	URL       string `json:"url,omitempty"`
}

var productBlockRe = regexp.MustCompile("(?is)```json\\s*(.*?)```")

// ExtractProducts scans raw text for a fenced block tagged as JSON and
// parses it as a product list. Parse failure is non-fatal: the result is
// nil, never an error, and the block still renders as a code block. Called
// on every render so a block that only becomes syntactically complete
// mid-stream is caught on the first call where it fully parses.
func ExtractProducts(raw string) []Product {
	match := productBlockRe.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}

	var products []Product
	if err := json.Unmarshal([]byte(match[1]), &products); err != nil {
		return nil
	}
	return products
}
