package orders

import "github.com/shopspring/decimal"

// PaymentMode is chosen per checkout session and never persisted locally.
type PaymentMode string

const (
	PaymentCashOnDelivery PaymentMode = "cash_on_delivery"
	PaymentCard           PaymentMode = "card"
	PaymentWallet         PaymentMode = "wallet"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentWallet:
		return true
	}
	return false
}

// Order status values reported by the order service.
const (
	StatusPlaced         = "placed"
	StatusPendingPayment = "pending_payment"
	StatusPaid           = "paid"
)

// OrderItem is the variant/quantity pair submitted with an order.
type OrderItem struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest is the order-creation payload. OrderID is generated by
// this service so a retried request cannot create a second order.
type CreateOrderRequest struct {
	OrderID     string          `json:"order_id"`
	AddressID   string          `json:"address_id"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	Items       []OrderItem     `json:"items"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CouponID    string          `json:"coupon_id,omitempty"`
}

// GatewaySession carries the payment-gateway parameters returned for card
// orders. The frontend hands these to the payment widget.
type GatewaySession struct {
	GatewayOrderID string `json:"gateway_order_id"`
	SessionID      string `json:"session_id"`
	SessionURL     string `json:"session_url"`
}

// Confirmation is the order service's response to order creation. For card
// payments Status is pending_payment and GatewaySession is set; for
// cash_on_delivery and wallet the single call both creates and finalizes.
type Confirmation struct {
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	GatewaySession *GatewaySession `json:"gateway_session,omitempty"`
}

// VerifyPaymentRequest finalizes a card order: the backend recomputes the
// gateway signature and confirms the payment server-side.
type VerifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}
