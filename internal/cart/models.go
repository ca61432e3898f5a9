package cart

import "github.com/shopspring/decimal"

// LineItem is a single variant entry in the cart. Quantity is only ever
// mutated through Store operations; the backend removes the row when the
// quantity would drop below one.
type LineItem struct {
	VariantID       string          `json:"variant_id"`
	ProductName     string          `json:"product_name"`
	VariantName     string          `json:"variant_name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	ProductImageRef string          `json:"product_image"`
}

// Cart mirrors the cart service's view of the user's cart. TotalPrice is the
// remote-computed sum; this service never recomputes it locally.
type Cart struct {
	Items      []LineItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Direction is the quantity-change intent sent to the cart service.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// MutationResult is the cart service's response to a quantity change.
// Removed reports a "no content" response, meaning the item dropped to zero
// and was deleted remotely.
type MutationResult struct {
	Removed    bool
	Item       LineItem
	TotalPrice decimal.Decimal
}
