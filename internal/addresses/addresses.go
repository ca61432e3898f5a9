package addresses

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront-service/internal/remote"
)

// ServiceName is the consul name of the backend user/profile service that
// owns saved addresses.
const ServiceName = "users"

// Address is a saved delivery address. Owned by the customer profile;
// checkout only selects one, it never edits them.
type Address struct {
	ID            string `json:"id"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Pincode       string `json:"pincode"`
}

// Client fetches the user's saved addresses.
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

func (c *Client) FetchAddresses(ctx context.Context, authHeader string) ([]Address, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/users/addresses", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching addresses: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching addresses: %s", resp.Status)
	}

	var body struct {
		Addresses []Address `json:"addresses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("error decoding addresses response: %w", err)
	}
	return body.Addresses, nil
}
