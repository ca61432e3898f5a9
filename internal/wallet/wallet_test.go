package wallet

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

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		total   string
		want    bool
	}{
		{"balance above total", "1000", "750", true},
		{"balance equal to total", "750", "750", true},
		{"balance below total", "500", "750", false},
		{"zero balance, zero total", "0", "0", true},
		{"zero balance, positive total", "0", "0.01", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			balance, _ := decimal.NewFromString(tc.balance)
			total, _ := decimal.NewFromString(tc.total)
			assert.Equal(t, tc.want, IsEligible(balance, total))
		})
	}
}

// Raising the total at a fixed balance must never turn eligibility on.
func TestIsEligibleMonotonic(t *testing.T) {
	balance := decimal.NewFromInt(500)

	wasEligible := true
	for total := int64(0); total <= 1000; total += 50 {
		eligible := IsEligible(balance, decimal.NewFromInt(total))
		if eligible && !wasEligible {
			t.Fatalf("eligibility flipped back on at total %d", total)
		}
		wasEligible = eligible
	}
}

func TestFetchBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet/balance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balance": "512.50"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(remote.StaticResolver{ServiceName: srv.URL})

	balance, err := client.FetchBalance(context.Background(), "Bearer t")
	require.NoError(t, err)
	assert.Equal(t, "512.50", balance.StringFixed(2))
}

func TestFetchBalanceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(remote.StaticResolver{ServiceName: srv.URL})

	_, err := client.FetchBalance(context.Background(), "Bearer t")
	assert.Error(t, err)
}
