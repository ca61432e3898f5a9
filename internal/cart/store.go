package cart

import (
	"context"
	"fmt"
	"sync"
)

// Store owns the local cart state for each user and mirrors every mutation to
// the cart service. The remote response is always the source of truth for
// totals; no price arithmetic happens here. On a remote error the local state
// is left at its last-known-good value.
type Store struct {
	client *Client

	mu    sync.RWMutex
	carts map[string]*Cart
}

func NewStore(client *Client) *Store {
	return &Store{
		client: client,
		carts:  make(map[string]*Cart),
	}
}

// Load fetches the authoritative cart and replaces the local state wholesale.
func (s *Store) Load(ctx context.Context, userID, authHeader string) (Cart, error) {
	fetched, err := s.client.FetchCart(ctx, authHeader)
	if err != nil {
		return Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}

	s.mu.Lock()
	s.carts[userID] = fetched
	s.mu.Unlock()

	return snapshot(fetched), nil
}

// Snapshot returns the last-known cart for the user without touching the
// network. The boolean reports whether a cart has been loaded at all.
func (s *Store) Snapshot(userID string) (Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[userID]
	if !ok {
		return Cart{}, false
	}
	return snapshot(c), true
}

// ChangeQuantity sends an increase/decrease intent for the variant. A removal
// response triggers a full reload; otherwise the single returned item is
// merged into local state by variant id and the total comes from the response.
func (s *Store) ChangeQuantity(ctx context.Context, userID, authHeader, variantID string, direction Direction) (Cart, error) {
	result, err := s.client.MutateQuantity(ctx, authHeader, variantID, direction)
	if err != nil {
		return Cart{}, fmt.Errorf("failed to change quantity: %w", err)
	}

	if result.Removed {
		return s.Load(ctx, userID, authHeader)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.carts[userID]
	if !ok {
		current = &Cart{}
		s.carts[userID] = current
	}

	merged := false
	for i := range current.Items {
		if current.Items[i].VariantID == result.Item.VariantID {
			current.Items[i] = result.Item
			merged = true
			break
		}
	}
	if !merged {
		current.Items = append(current.Items, result.Item)
	}
	current.TotalPrice = result.TotalPrice

	return snapshot(current), nil
}

// Remove deletes the variant remotely and reloads the full cart.
func (s *Store) Remove(ctx context.Context, userID, authHeader, variantID string) (Cart, error) {
	if err := s.client.RemoveItem(ctx, authHeader, variantID); err != nil {
		return Cart{}, fmt.Errorf("failed to remove item: %w", err)
	}
	return s.Load(ctx, userID, authHeader)
}

// Clear empties the remote cart and wipes the local state. Used after a
// successful order placement.
func (s *Store) Clear(ctx context.Context, userID, authHeader string) error {
	if err := s.client.ClearCart(ctx, authHeader); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	return nil
}

func snapshot(c *Cart) Cart {
	out := Cart{TotalPrice: c.TotalPrice}
	if len(c.Items) > 0 {
		out.Items = make([]LineItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}
