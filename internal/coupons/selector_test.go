package coupons

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/remote"
)

func newTestSelector(t *testing.T, handler http.Handler) *Selector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resolver := remote.StaticResolver{ServiceName: srv.URL}
	return NewSelector(NewClient(resolver))
}

func eligibleHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /coupons/eligible", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("subtotal"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"coupons": [
				{
					"id": "c1", "code": "FLAT200", "discount_type": "flat",
					"discount_value": "200", "min_order_value": "500", "is_active": true
				},
				{
					"id": "c2", "code": "SAVE30", "discount_type": "percentage",
					"discount_value": "30", "min_order_value": "800",
					"max_discount": "250", "is_active": true
				}
			]
		}`))
	})
	return mux
}

func TestSelectorFetchEligible(t *testing.T) {
	sel := newTestSelector(t, eligibleHandler(t))

	list, err := sel.FetchEligible(context.Background(), "u1", "Bearer t", decimal.NewFromInt(1000))
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, "FLAT200", list[0].Code)
	assert.Equal(t, DiscountPercentage, list[1].DiscountType)
	assert.Equal(t, "250", list[1].MaxDiscount.String())
}

func TestSelectorSelect(t *testing.T) {
	sel := newTestSelector(t, eligibleHandler(t))

	_, err := sel.FetchEligible(context.Background(), "u1", "Bearer t", decimal.NewFromInt(1000))
	require.NoError(t, err)

	t.Run("known coupon", func(t *testing.T) {
		coupon, err := sel.Select("u1", "c1", decimal.NewFromInt(1000))
		require.NoError(t, err)
		assert.Equal(t, "FLAT200", coupon.Code)
	})

	t.Run("unknown coupon id", func(t *testing.T) {
		_, err := sel.Select("u1", "nope", decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("other user has no candidate list", func(t *testing.T) {
		_, err := sel.Select("u2", "c1", decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("subtotal dropped below minimum since fetch", func(t *testing.T) {
		_, err := sel.Select("u1", "c2", decimal.NewFromInt(700))
		assert.ErrorIs(t, err, ErrBelowMinOrder)
	})
}
