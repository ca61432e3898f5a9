package coupons

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat subtracts a fixed amount from the subtotal.
	DiscountFlat DiscountType = "flat"
	// DiscountPercentage subtracts a percentage of the subtotal, capped at MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
)

// Coupon is the discount rule as served by the coupon service. Customers only
// ever read coupons; creation and editing happen in the admin backend.
type Coupon struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	MaxDiscount   decimal.Decimal `json:"max_discount"` // percentage type only
	StartDate     time.Time       `json:"start_date"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	IsActive      bool            `json:"is_active"`
}
