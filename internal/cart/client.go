package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront-service/internal/remote"
)

// ServiceName is the consul name of the backend cart service.
const ServiceName = "cart"

// Client talks to the remote cart service. The caller's bearer token is
// forwarded so the backend resolves the user from its own claims.
type Client struct {
	resolver remote.Resolver
	http     *http.Client
}

func NewClient(resolver remote.Resolver) *Client {
	return &Client{
		resolver: resolver,
		http:     http.DefaultClient,
	}
}

func (c *Client) FetchCart(ctx context.Context, authHeader string) (*Cart, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/cart/items", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching cart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching cart: %s", resp.Status)
	}

	var fetched Cart
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return nil, fmt.Errorf("error decoding cart response: %w", err)
	}
	return &fetched, nil
}

// MutateQuantity sends an increase/decrease intent for a variant. A
// "no content" response means the quantity hit zero and the item was removed.
func (c *Client) MutateQuantity(ctx context.Context, authHeader, variantID string, direction Direction) (*MutationResult, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"variant_id": variantID,
		"action":     string(direction),
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling mutation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/cart/items/quantity", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error mutating cart item: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &MutationResult{Removed: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error mutating cart item: %s", resp.Status)
	}

	var body struct {
		Item       LineItem        `json:"item"`
		TotalPrice decimal.Decimal `json:"total_price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("error decoding mutation response: %w", err)
	}

	return &MutationResult{Item: body.Item, TotalPrice: body.TotalPrice}, nil
}

func (c *Client) RemoveItem(ctx context.Context, authHeader, variantID string) error {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+"/cart/items/"+variantID, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error removing cart item: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("error removing cart item: %s", resp.Status)
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context, authHeader string) error {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/cart/clear", nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error clearing cart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("error clearing cart: %s", resp.Status)
	}
	return nil
}
