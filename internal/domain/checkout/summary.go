package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/unisouk/storefront-checkout/internal/domain/shipping"
)

// taxRate is the flat tax applied to the cart subtotal.
var taxRate = decimal.NewFromFloat(0.10)

// Summary is the order total breakdown shown on every step and charged
// through the payment gateway: the gateway amount must equal Total, not the
// raw cart subtotal.
type Summary struct {
	ShippingMethod shipping.Method `json:"shippingMethod"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeSummary derives the totals for a cart subtotal and delivery method:
// tax is 10% of the subtotal rounded to whole units, the shipping fee is the
// method's flat surcharge.
func ComputeSummary(subtotal decimal.Decimal, method shipping.Method) Summary {
	tax := subtotal.Mul(taxRate).Round(0)
	fee := shipping.Surcharge(method)
	return Summary{
		ShippingMethod: method,
		Subtotal:       subtotal,
		Tax:            tax,
		ShippingFee:    fee,
		Total:          subtotal.Add(tax).Add(fee),
	}
}
