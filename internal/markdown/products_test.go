// ABOUTME: Tests for structured product extraction from fenced data blocks
// ABOUTME: Covers valid lists, invalid JSON tolerance and non-array payloads

package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProducts_ValidBlock(t *testing.T) {
	raw := "Here are the matches:\n```json\n[{\"title\":\"Shirt\",\"price\":\"$20\",\"id\":\"v1\"}]\n```"

	products := ExtractProducts(raw)
	require.Len(t, products, 1)
	assert.Equal(t, "Shirt", products[0].Title)
	assert.Equal(t, "$20", products[0].Price)
	assert.Equal(t, "v1", products[0].VariantID)
}

func TestExtractProducts_InvalidJSONYieldsNothing(t *testing.T) {
	raw := "```json\n[{\"title\":}]\n```"

	assert.NotPanics(t, func() {
		assert.Nil(t, ExtractProducts(raw))
	})
}

func TestExtractProducts_NoBlock(t *testing.T) {
	assert.Nil(t, ExtractProducts("no data block here"))
}

func TestExtractProducts_NonArrayPayload(t *testing.T) {
	raw := "```json\n{\"title\":\"not a list\"}\n```"

	assert.Nil(t, ExtractProducts(raw))
}

func TestExtractProducts_FullProductFields(t *testing.T) {
	raw := "```json\n[{\"id\":\"v9\",\"title\":\"Boots\",\"price\":\"$120\",\"image_url\":\"https://cdn.example.com/boots.webp\",\"url\":\"https://shop.example.com/products/boots\"}]\n```"

	products := ExtractProducts(raw)
	require.Len(t, products, 1)
	assert.Equal(t, "https://cdn.example.com/boots.webp", products[0].ImageURL)
	assert.Equal(t, "https://shop.example.com/products/boots", products[0].URL)
}

func TestExtractProducts_UppercaseFenceTag(t *testing.T) {
	raw := "```JSON\n[{\"id\":\"v1\",\"title\":\"Hat\",\"price\":\"$10\"}]\n```"

	products := ExtractProducts(raw)
	require.Len(t, products, 1)
	assert.Equal(t, "Hat", products[0].Title)
}

func TestExtractProducts_CaughtMidStream(t *testing.T) {
	// An unterminated block parses as nothing; the same text with the
	// closing fence parses on the next call
	partial := "```json\n[{\"id\":\"v1\",\"title\":\"Hat\",\"price\":\"$10\"}]"
	assert.Nil(t, ExtractProducts(partial))

	complete := partial + "\n```"
	assert.Len(t, ExtractProducts(complete), 1)
}
