package kafka

import "time"

const (
	// TopicOrderPlaced carries one event per successfully placed order.
	TopicOrderPlaced = `storefront.order-placed`
)

// OrderPlacedEvent is produced after a checkout reaches its success state.
type OrderPlacedEvent struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	PaymentMode string    `json:"payment_mode"`
	TotalPrice  string    `json:"total_price"`
	CouponID    string    `json:"coupon_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
