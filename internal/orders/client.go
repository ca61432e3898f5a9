package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"storefront-service/internal/remote"
)

// ServiceName is the consul name of the backend order service.
const ServiceName = "orders"

// ErrVerificationFailed is returned when the order service rejects the
// gateway payment signature. The order stays unconfirmed; there is no
// automatic retry.
var ErrVerificationFailed = errors.New("payment verification failed")

// Client talks to the remote order service.
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

// CreateOrder submits the order. Exactly one call is made per successful
// checkout; the caller's state machine guards against duplicates.
func (c *Client) CreateOrder(ctx context.Context, authHeader string, order CreateOrderRequest) (*Confirmation, error) {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("error marshaling order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("error creating order: %s: %s", resp.Status, body)
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return nil, fmt.Errorf("error decoding order confirmation: %w", err)
	}
	return &conf, nil
}

// VerifyPayment asks the order service to confirm the gateway payment
// signature and finalize the card order.
func (c *Client) VerifyPayment(ctx context.Context, authHeader string, verify VerifyPaymentRequest) error {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(verify)
	if err != nil {
		return fmt.Errorf("error marshaling verification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/orders/verify-payment", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error verifying payment: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return ErrVerificationFailed
	default:
		return fmt.Errorf("error verifying payment: %s", resp.Status)
	}
}

// ConfirmPayment marks an order as paid after a gateway webhook event.
// Service-to-service call; the webhook carries no user bearer token.
func (c *Client) ConfirmPayment(ctx context.Context, orderID, gatewayRef string) error {
	base, err := c.resolver.Resolve(ServiceName)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"gateway_ref": gatewayRef})
	if err != nil {
		return fmt.Errorf("error marshaling confirmation: %w", err)
	}

	url := fmt.Sprintf("%s/orders/%s/payment-confirmed", base, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error confirming payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("error confirming payment: %s", resp.Status)
	}
	return nil
}
