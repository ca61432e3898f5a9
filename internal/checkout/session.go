package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-service/internal/addresses"
	"storefront-service/internal/cart"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
)

// State is the checkout session's position in the placement flow.
type State string

const (
	// StateLoading covers the concurrent address/coupon/wallet fetches at entry.
	StateLoading State = "loading"
	// StateReady allows free address, coupon and payment-mode changes without
	// network traffic.
	StateReady State = "ready"
	// StateConfirming awaits the explicit cash-on-delivery confirmation.
	StateConfirming State = "confirming"
	// StateSubmitting means the order-creation call is in flight, or a card
	// payment is awaiting gateway verification. No further submissions are
	// accepted while here.
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// Session is one user's checkout in progress. Totals are recomputed locally
// from the server-reported subtotal whenever the coupon changes; the subtotal
// itself always comes from the cart service.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	State  State  `json:"state"`

	Cart     cart.Cart       `json:"cart"`
	Subtotal decimal.Decimal `json:"subtotal"`

	Addresses         []addresses.Address `json:"addresses"`
	SelectedAddressID string              `json:"selected_address_id"`

	EligibleCoupons []coupons.Coupon `json:"eligible_coupons"`
	Coupon          *coupons.Coupon  `json:"coupon,omitempty"`
	Discount        decimal.Decimal  `json:"discount"`
	Total           decimal.Decimal  `json:"total"`

	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	WalletEligible bool            `json:"wallet_eligible"`

	PaymentMode orders.PaymentMode `json:"payment_mode"`

	OrderID        string                 `json:"order_id,omitempty"`
	GatewaySession *orders.GatewaySession `json:"gateway_session,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CouponID returns the applied coupon id, or "" when none is applied.
func (s *Session) CouponID() string {
	if s.Coupon == nil {
		return ""
	}
	return s.Coupon.ID
}
