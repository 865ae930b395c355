// ABOUTME: Cart integration client for add-to-cart actions
// ABOUTME: Posts line items to the shop cart endpoint and publishes updates

package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// UpdateSource tags cart updates that originate from the chat surface so
// subscribers can tell them apart from theme-driven updates.
const UpdateSource = "chat-ai-add-to-cart"

// Update is published after a successful add-to-cart call.
type Update struct {
	Source    string          `json:"source"`
	VariantID string          `json:"productVariantId"`
	CartData  json.RawMessage `json:"cartData"`
}

// Notifier receives cart updates. A nil Notifier disables publication.
type Notifier func(Update)

// Client posts add-to-cart requests to the shop.
type Client struct {
	addURL     string
	httpClient *http.Client
	notify     Notifier
	logger     *slog.Logger
}

// lineItem is one entry in an add-to-cart request body.
type lineItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// NewClient creates a cart client posting to addURL. notify may be nil.
func NewClient(addURL string, httpClient *http.Client, notify Notifier, logger *slog.Logger) (*Client, error) {
	if addURL == "" {
		return nil, fmt.Errorf("cart add URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		addURL:     addURL,
		httpClient: httpClient,
		notify:     notify,
		logger:     logger.With("component", "cart"),
	}, nil
}

// Add puts one unit of the variant in the cart. On success the cart
// update is published with the chat source tag; on failure the error is
// returned so the caller can reset the action to a retryable state, and
// nothing is published.
func (c *Client) Add(ctx context.Context, variantID string) error {
	if variantID == "" {
		return fmt.Errorf("variant id is required")
	}

	body, err := json.Marshal(struct {
		Items []lineItem `json:"items"`
	}{Items: []lineItem{{ID: variantID, Quantity: 1}}})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("adding to cart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var result json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	c.logger.Info("added to cart", "variant_id", variantID)
	if c.notify != nil {
		c.notify(Update{Source: UpdateSource, VariantID: variantID, CartData: result})
	}
	return nil
}
