package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront-service/internal/remote"
)

// ServiceName is the consul name of the backend wallet service.
const ServiceName = "wallet"

// IsEligible reports whether the stored wallet balance can cover the payable
// total. Re-evaluated whenever either side changes; raising the total while
// the balance holds still can only switch eligibility off, never on.
func IsEligible(balance, total decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(total)
}

// Client fetches the user's wallet balance from the wallet service.
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

func (c *Client) FetchBalance(ctx context.Context, authHeader string) (decimal.Decimal, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/wallet/balance", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error fetching wallet balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("error fetching wallet balance: %s", resp.Status)
	}

	var body struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("error decoding wallet response: %w", err)
	}
	return body.Balance, nil
}
