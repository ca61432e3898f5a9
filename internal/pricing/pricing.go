package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"storefront-service/internal/coupons"
)

// ErrBelowMinOrder is returned when ComputeTotal is handed a coupon whose
// minimum order value exceeds the subtotal. Callers are expected to have
// validated applicability already; hitting this is a precondition violation,
// not a normal branch.
var ErrBelowMinOrder = errors.New("subtotal below coupon minimum order value")

var oneHundred = decimal.NewFromInt(100)

// Quote is the outcome of pricing a subtotal against an optional coupon.
type Quote struct {
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotal prices the given subtotal under the coupon's discount rule.
// A nil coupon yields a zero discount. The returned total is never negative.
// Pure and deterministic; no side effects.
func ComputeTotal(subtotal decimal.Decimal, coupon *coupons.Coupon) (Quote, error) {
	if coupon == nil {
		return Quote{Discount: decimal.Zero, Total: subtotal}, nil
	}

	if subtotal.LessThan(coupon.MinOrderValue) {
		return Quote{}, ErrBelowMinOrder
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case coupons.DiscountPercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(oneHundred)
		if coupon.MaxDiscount.IsPositive() && discount.GreaterThan(coupon.MaxDiscount) {
			discount = coupon.MaxDiscount
		}
	default:
		// flat
		discount = coupon.DiscountValue
	}

	// Never discount past zero.
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return Quote{
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}, nil
}
