package checkout

import (
	"regexp"

	"github.com/unisouk/storefront-checkout/internal/domain/address"
	"github.com/unisouk/storefront-checkout/internal/session"
)

// BuyerInfo is the billing record as transmitted in the order payload.
// Pincode is normalized to a 6-digit numeric value, or 0 when the entered
// value does not match that stricter form.
type BuyerInfo struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Address        string `json:"address"`
	Building       string `json:"building"`
	City           string `json:"city"`
	Pincode        int    `json:"pincode"`
	State          string `json:"state"`
	Country        string `json:"country"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	IsShippingSame bool   `json:"isShippingSame"`
}

// ShippingDetail is the shipping record as transmitted in the order payload.
type ShippingDetail struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	Building  string `json:"building"`
	City      string `json:"city"`
	Pincode   int    `json:"pincode"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrderAddress is the flattened delivery address: full name plus the billing
// address fields.
type OrderAddress struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Building string `json:"building"`
	City     string `json:"city"`
	Pincode  int    `json:"pincode"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// OrderPayload is the body posted to the commerce API's order-creation
// endpoint.
type OrderPayload struct {
	CartID         string         `json:"cartId"`
	CustomerID     string         `json:"customerId"`
	ChannelType    string         `json:"channelType"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	BuyerInfo      BuyerInfo      `json:"buyerInfo"`
	ShippingDetail ShippingDetail `json:"shippingDetail"`
	Address        OrderAddress   `json:"address"`
	ExtraData      map[string]any `json:"extraData"`
}

var sixDigitRe = regexp.MustCompile(`^[0-9]{6}$`)

// ParsePincode coerces a pincode string to its numeric wire form: exactly six
// digits parse to the number, anything else becomes 0. Note this is stricter
// than the 5-10 digit grammar the address validator accepts; out-of-form
// values are coerced rather than rejected at this layer.
func ParsePincode(s string) int {
	if !sixDigitRe.MatchString(s) {
		return 0
	}
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// buildPayload assembles the order submission payload from the wizard's
// accumulated state and the session identity. The pricing breakdown shown to
// the customer rides along in extraData so the order system sees the same
// totals the gateway is charged.
func buildPayload(
	ident session.Identity,
	channelType string,
	method PaymentMethod,
	billing address.Record,
	shippingSame bool,
	shippingAddr address.Record,
	summary Summary,
) OrderPayload {
	buyer := BuyerInfo{
		FirstName:      billing.FirstName,
		LastName:       billing.LastName,
		Address:        billing.Address,
		Building:       billing.Building,
		City:           billing.City,
		Pincode:        ParsePincode(billing.Pincode),
		State:          billing.State,
		Country:        billing.Country,
		Email:          billing.Email,
		Phone:          billing.Phone,
		IsShippingSame: shippingSame,
	}

	shipping := ShippingDetail{
		FirstName: shippingAddr.FirstName,
		LastName:  shippingAddr.LastName,
		Address:   shippingAddr.Address,
		Building:  shippingAddr.Building,
		City:      shippingAddr.City,
		Pincode:   ParsePincode(shippingAddr.Pincode),
		State:     shippingAddr.State,
		Country:   shippingAddr.Country,
		Email:     shippingAddr.Email,
		Phone:     shippingAddr.Phone,
	}

	addr := OrderAddress{
		Name:     billing.FullName(),
		Address:  billing.Address,
		Building: billing.Building,
		City:     billing.City,
		Pincode:  ParsePincode(billing.Pincode),
		State:    billing.State,
		Country:  billing.Country,
		Email:    billing.Email,
		Phone:    billing.Phone,
	}

	return OrderPayload{
		CartID:         ident.CartID,
		CustomerID:     ident.CustomerID,
		ChannelType:    channelType,
		PaymentMethod:  method,
		BuyerInfo:      buyer,
		ShippingDetail: shipping,
		Address:        addr,
		ExtraData: map[string]any{
			"shippingMethod": string(summary.ShippingMethod),
			"subtotal":       summary.Subtotal,
			"tax":            summary.Tax,
			"shippingFee":    summary.ShippingFee,
			"total":          summary.Total,
		},
	}
}
