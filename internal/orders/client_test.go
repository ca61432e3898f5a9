package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/remote"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(remote.StaticResolver{ServiceName: srv.URL})
}

func TestCreateOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sess-1", req.OrderID)
		assert.Equal(t, PaymentCard, req.PaymentMode)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Confirmation{
			OrderID:    req.OrderID,
			Status:     StatusPendingPayment,
			TotalPrice: req.TotalPrice,
			GatewaySession: &GatewaySession{
				GatewayOrderID: "gw-1",
				SessionID:      "cs-1",
			},
		})
	})

	client := newTestClient(t, mux)

	conf, err := client.CreateOrder(context.Background(), "Bearer t", CreateOrderRequest{
		OrderID:     "sess-1",
		AddressID:   "a1",
		PaymentMode: PaymentCard,
		Items:       []OrderItem{{VariantID: "v1", Quantity: 2}},
		TotalPrice:  decimal.NewFromInt(800),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPendingPayment, conf.Status)
	require.NotNil(t, conf.GatewaySession)
	assert.Equal(t, "gw-1", conf.GatewaySession.GatewayOrderID)
}

func TestVerifyPaymentStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"verified", http.StatusOK, nil},
		{"bad signature", http.StatusBadRequest, ErrVerificationFailed},
		{"payment declined", http.StatusPaymentRequired, ErrVerificationFailed},
		{"unprocessable", http.StatusUnprocessableEntity, ErrVerificationFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))

			err := client.VerifyPayment(context.Background(), "Bearer t", VerifyPaymentRequest{
				GatewayOrderID: "gw-1", PaymentID: "p1", Signature: "sig",
			})
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestVerifyPaymentServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.VerifyPayment(context.Background(), "Bearer t", VerifyPaymentRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVerificationFailed, "an outage is not a rejection")
}

func TestConfirmPayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders/o1/payment-confirmed", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pi_123", body["gateway_ref"])
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.ConfirmPayment(context.Background(), "o1", "pi_123"))
}
