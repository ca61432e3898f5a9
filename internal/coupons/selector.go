package coupons

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrCouponNotFound is returned when a selected coupon id is not in the
	// last fetched eligible list.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrBelowMinOrder is returned when the subtotal no longer satisfies the
	// coupon's minimum order value. Surfaced to the user; totals stay unchanged.
	ErrBelowMinOrder = errors.New("order subtotal below coupon minimum")
)

// Selector fetches eligible coupons and resolves selections against the last
// fetched list. The backend pre-filters by minimum order value; the selector
// only re-checks defensively before handing the coupon to the pricing engine.
type Selector struct {
	client *Client

	mu      sync.RWMutex
	fetched map[string][]Coupon // keyed by user id
}

func NewSelector(client *Client) *Selector {
	return &Selector{
		client:  client,
		fetched: make(map[string][]Coupon),
	}
}

// FetchEligible queries the coupon service for coupons applicable at the given
// subtotal and remembers the result as the user's candidate list.
func (s *Selector) FetchEligible(ctx context.Context, userID, authHeader string, subtotal decimal.Decimal) ([]Coupon, error) {
	list, err := s.client.FetchEligible(ctx, authHeader, subtotal)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible coupons: %w", err)
	}

	s.mu.Lock()
	s.fetched[userID] = list
	s.mu.Unlock()

	return list, nil
}

// Select looks the coupon up in the user's last fetched list and verifies the
// subtotal still meets its minimum order value.
func (s *Selector) Select(userID, couponID string, subtotal decimal.Decimal) (*Coupon, error) {
	s.mu.RLock()
	list := s.fetched[userID]
	s.mu.RUnlock()

	for i := range list {
		if list[i].ID == couponID {
			if subtotal.LessThan(list[i].MinOrderValue) {
				return nil, ErrBelowMinOrder
			}
			coupon := list[i]
			return &coupon, nil
		}
	}
	return nil, ErrCouponNotFound
}
