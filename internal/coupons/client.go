package coupons

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront-service/internal/remote"
)

// ServiceName is the consul name of the backend coupon service.
const ServiceName = "coupons"

// Client fetches coupons from the coupon service. The service pre-filters by
// subtotal, returning only coupons whose minimum order value is satisfied.
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

func (c *Client) FetchEligible(ctx context.Context, authHeader string, subtotal decimal.Decimal) ([]Coupon, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/coupons/eligible?subtotal=%s", base, subtotal.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching eligible coupons: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching eligible coupons: %s", resp.Status)
	}

	var body struct {
		Coupons []Coupon `json:"coupons"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("error decoding coupons response: %w", err)
	}
	return body.Coupons, nil
}
