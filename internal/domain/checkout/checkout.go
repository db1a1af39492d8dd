// Package checkout implements the multi-step checkout wizard: step
// transitions, billing/shipping/payment aggregation, order submission, and
// the conditional payment gateway branch.
package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/unisouk/storefront-checkout/internal/domain/address"
	"github.com/unisouk/storefront-checkout/internal/session"
)

// Step is the wizard position. Steps are ordered; backward navigation to any
// earlier step is always allowed, Confirmation is terminal.
type Step int

const (
	StepBilling Step = iota + 1
	StepShipping
	StepPaymentMethod
	StepReview
	StepConfirmation
)

// Valid reports whether s is one of the five wizard steps.
func (s Step) Valid() bool {
	return s >= StepBilling && s <= StepConfirmation
}

func (s Step) String() string {
	switch s {
	case StepBilling:
		return "billing"
	case StepShipping:
		return "shipping"
	case StepPaymentMethod:
		return "payment_method"
	case StepReview:
		return "review"
	case StepConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// PaymentMethod is the selected payment branch. Wire values match the
// commerce API contract: COD settles on delivery, CVS routes through the
// hosted card gateway.
type PaymentMethod string

const (
	CashOnDelivery PaymentMethod = "COD"
	CardGateway    PaymentMethod = "CVS"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == CashOnDelivery || m == CardGateway
}

// LineItem is a single cart line as purchased.
type LineItem struct {
	VariantID string          `json:"variantId"`
	Title     string          `json:"title"`
	BrandName string          `json:"brandName"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Images    []string        `json:"images,omitempty"`
}

// CartSnapshot is the immutable view of the items and total being purchased.
// It is supplied once at wizard entry, either from the persisted cart or as a
// synthesized single-item buy-now cart; line changes happen upstream, before
// checkout starts.
type CartSnapshot struct {
	CartID      string          `json:"cartId"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// BuyNowCart synthesizes a single-item snapshot for the buy-now path. The
// snapshot carries no cart identifier of its own; order submission still uses
// the session's persisted cart identifier.
func BuyNowCart(cartID string, item LineItem) CartSnapshot {
	qty := decimal.NewFromInt(int64(item.Quantity))
	return CartSnapshot{
		CartID:      cartID,
		Items:       []LineItem{item},
		TotalAmount: item.UnitPrice.Mul(qty),
	}
}

// ShippingChoice is a tagged choice between reusing the billing address and
// shipping to a separately entered one. Modelling it this way keeps a single
// source of truth instead of mirroring two records through a boolean flag.
type ShippingChoice struct {
	custom *address.Record
}

// ShipToBilling reuses the billing address for shipping.
func ShipToBilling() ShippingChoice {
	return ShippingChoice{}
}

// ShipTo ships to a separately entered address.
func ShipTo(rec address.Record) ShippingChoice {
	return ShippingChoice{custom: &rec}
}

// SameAsBilling reports whether the choice derives from the billing address.
func (c ShippingChoice) SameAsBilling() bool { return c.custom == nil }

// Resolve returns the effective shipping address given the current billing
// record. For the same-as-billing choice every billing edit is reflected
// here automatically.
func (c ShippingChoice) Resolve(billing address.Record) address.Record {
	if c.custom == nil {
		return billing
	}
	return *c.custom
}

// OrderResult is the commerce API's answer to order creation. Exactly one of
// the identifiers is expected, depending on the payment method: OrderID for
// cash orders, GatewayOrderID for the card gateway branch.
type OrderResult struct {
	OrderID        string
	GatewayOrderID string
}

// OrderSubmitter creates an order against the external commerce API. The
// idempotency key is minted once per checkout so duplicate submissions of
// the same wizard cannot create duplicate orders server-side.
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, payload OrderPayload, idempotencyKey string) (*OrderResult, error)
}

// SubmissionError is returned by an OrderSubmitter when the commerce API
// rejected the order with a human-readable message. The wizard prefers this
// message over the generic fallback.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("order submission failed with status %d", e.Status)
}

// GatewayError is returned by a Gateway when the hosted widget reported a
// payment failure. The description, when present, comes from the gateway's
// failure callback and is shown to the customer as-is.
type GatewayError struct {
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return "Payment failed. Please try again."
	}
	return "Payment failed: " + e.Description
}

// ChargeOutcome is the resolution of a gateway charge.
type ChargeOutcome int

const (
	// ChargeCaptured means the hosted widget reported successful capture.
	ChargeCaptured ChargeOutcome = iota + 1
	// ChargeCancelled means the customer dismissed the widget without paying.
	ChargeCancelled
)

// ChargeRequest carries everything the hosted payment widget needs. Amount is
// in major currency units; the adapter converts to the gateway's minor-unit
// representation.
type ChargeRequest struct {
	Amount         decimal.Decimal
	OrderReference string
	Email          string
	Phone          string
	Name           string
}

// Gateway drives the third-party hosted payment UI. Charge blocks until the
// widget resolves: captured, cancelled, or failed with an error carrying a
// description.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
}

// SessionStore is the slice of the session layer the wizard needs: read the
// identity at submission time and clear the persisted cart identifier on a
// confirmed order. Absence of either identity value is a valid state the
// wizard must refuse to submit against.
type SessionStore interface {
	Get(ctx context.Context, token string) (session.Identity, error)
	ClearCartID(ctx context.Context, token string) error
}
