// Package shipping enumerates the delivery methods offered at checkout.
package shipping

import "github.com/shopspring/decimal"

// Method identifies one of the fixed delivery options.
type Method string

const (
	Standard  Method = "standard"
	Express   Method = "express"
	Overnight Method = "overnight"
)

// Default is the method preselected when a checkout starts.
const Default = Standard

// Valid reports whether m is one of the enumerated methods.
func (m Method) Valid() bool {
	switch m {
	case Standard, Express, Overnight:
		return true
	}
	return false
}

// Option describes a delivery method as presented to the customer: display
// label, estimated delivery window, and the flat surcharge added to the
// order total.
type Option struct {
	Method    Method          `json:"method"`
	Label     string          `json:"label"`
	Window    string          `json:"window"`
	Surcharge decimal.Decimal `json:"surcharge"`
}

var options = []Option{
	{Method: Standard, Label: "Standard Delivery", Window: "5-7 business days", Surcharge: decimal.Zero},
	{Method: Express, Label: "Express Delivery", Window: "2-3 business days", Surcharge: decimal.NewFromInt(99)},
	{Method: Overnight, Label: "Overnight Delivery", Window: "Next day delivery", Surcharge: decimal.NewFromInt(299)},
}

// Lookup returns the Option for m. The second return value is false for an
// unknown method.
func Lookup(m Method) (Option, bool) {
	for _, o := range options {
		if o.Method == m {
			return o, true
		}
	}
	return Option{}, false
}

// Surcharge returns the flat fee for m, or zero for an unknown method.
func Surcharge(m Method) decimal.Decimal {
	if o, ok := Lookup(m); ok {
		return o.Surcharge
	}
	return decimal.Zero
}

// Options returns all delivery methods in presentation order.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}
