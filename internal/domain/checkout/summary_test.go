package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/unisouk/storefront-checkout/internal/domain/shipping"
)

func TestComputeSummary(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		method   shipping.Method
		tax      int64
		fee      int64
		total    int64
	}{
		{"standard", 1000, shipping.Standard, 100, 0, 1100},
		{"express", 1000, shipping.Express, 100, 99, 1199},
		{"overnight", 1000, shipping.Overnight, 100, 299, 1399},
		{"zero cart", 0, shipping.Standard, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeSummary(decimal.NewFromInt(tt.subtotal), tt.method)

			assert.True(t, s.Tax.Equal(decimal.NewFromInt(tt.tax)), "tax %s", s.Tax)
			assert.True(t, s.ShippingFee.Equal(decimal.NewFromInt(tt.fee)), "fee %s", s.ShippingFee)
			assert.True(t, s.Total.Equal(decimal.NewFromInt(tt.total)), "total %s", s.Total)
			assert.Equal(t, tt.method, s.ShippingMethod)
		})
	}
}

func TestComputeSummary_TaxRoundsToWholeUnits(t *testing.T) {
	// 10% of 995 is 99.5, rounded to 100.
	s := ComputeSummary(decimal.NewFromInt(995), shipping.Standard)
	assert.True(t, s.Tax.Equal(decimal.NewFromInt(100)), "tax %s", s.Tax)
	assert.True(t, s.Total.Equal(decimal.NewFromInt(1095)), "total %s", s.Total)
}
