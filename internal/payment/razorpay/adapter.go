// Package razorpay adapts the hosted Razorpay checkout widget to the
// checkout.Gateway contract. The widget runs on the customer's device; the
// adapter parks each charge until the storefront reports the widget's
// outcome through the payment callback endpoint.
package razorpay

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unisouk/storefront-checkout/internal/domain/checkout"
)

var (
	// ErrInvalidAmount is returned before any charge is registered when the
	// minor-unit amount is zero or negative.
	ErrInvalidAmount = errors.New("invalid amount passed to gateway")
	// ErrChargeInFlight guards against two charges for the same gateway order.
	ErrChargeInFlight = errors.New("a charge for this order is already pending")
	// ErrNoPendingCharge is returned by the resolve calls for unknown orders.
	ErrNoPendingCharge = errors.New("no pending charge for this order")
	// ErrChargeTimedOut is returned when the widget never reported back
	// within the configured wait window.
	ErrChargeTimedOut = errors.New("hosted checkout timed out")
)

// Config holds the widget settings.
type Config struct {
	// KeyID is the public Razorpay key embedded in the widget options.
	KeyID string
	// MerchantName is shown in the widget header.
	MerchantName string
	// Description is shown under the merchant name.
	Description string
	// ThemeColor styles the widget.
	ThemeColor string
	// WaitTimeout bounds how long Charge blocks for the widget outcome.
	// Zero means wait until the caller's context expires.
	WaitTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MerchantName == "" {
		c.MerchantName = "UniSouk"
	}
	if c.Description == "" {
		c.Description = "Order Payment"
	}
	if c.ThemeColor == "" {
		c.ThemeColor = "#f97316"
	}
}

// Adapter implements checkout.Gateway against the hosted widget.
type Adapter struct {
	cfg Config
	lg  *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingCharge
}

type pendingCharge struct {
	req         checkout.ChargeRequest
	amountPaise int64
	done        chan resolution
}

type resolution struct {
	outcome checkout.ChargeOutcome
	err     error
}

var _ checkout.Gateway = (*Adapter)(nil)

// New creates an Adapter.
func New(cfg Config, lg *zap.Logger) *Adapter {
	cfg.applyDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Adapter{
		cfg:     cfg,
		lg:      lg,
		pending: make(map[string]*pendingCharge),
	}
}

// MinorUnits converts a major-unit amount to the gateway's integer paise
// representation.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Charge registers a pending charge for the gateway order reference and
// blocks until the widget resolves it: captured, cancelled, or failed with a
// description. The amount is validated in minor units before anything is
// registered.
func (a *Adapter) Charge(ctx context.Context, req checkout.ChargeRequest) (checkout.ChargeOutcome, error) {
	paise := MinorUnits(req.Amount)
	if paise <= 0 {
		return 0, ErrInvalidAmount
	}
	if req.OrderReference == "" {
		return 0, errors.New("order reference required")
	}

	done := make(chan resolution, 1)
	a.mu.Lock()
	if _, exists := a.pending[req.OrderReference]; exists {
		a.mu.Unlock()
		return 0, ErrChargeInFlight
	}
	a.pending[req.OrderReference] = &pendingCharge{req: req, amountPaise: paise, done: done}
	a.mu.Unlock()
	defer a.remove(req.OrderReference)

	a.lg.Info("awaiting hosted checkout",
		zap.String("gateway_order", req.OrderReference),
		zap.Int64("amount_paise", paise),
	)

	var timeout <-chan time.Time
	if a.cfg.WaitTimeout > 0 {
		timer := time.NewTimer(a.cfg.WaitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		return res.outcome, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timeout:
		return 0, ErrChargeTimedOut
	}
}

// Resolve completes a pending charge as captured.
func (a *Adapter) Resolve(orderRef string) error {
	return a.finish(orderRef, resolution{outcome: checkout.ChargeCaptured})
}

// Cancel completes a pending charge as dismissed by the customer.
func (a *Adapter) Cancel(orderRef string) error {
	return a.finish(orderRef, resolution{outcome: checkout.ChargeCancelled})
}

// Fail completes a pending charge with the failure description reported by
// the widget's payment.failed event.
func (a *Adapter) Fail(orderRef, description string) error {
	return a.finish(orderRef, resolution{err: &checkout.GatewayError{Description: description}})
}

func (a *Adapter) finish(orderRef string, res resolution) error {
	a.mu.Lock()
	p, ok := a.pending[orderRef]
	if ok {
		delete(a.pending, orderRef)
	}
	a.mu.Unlock()
	if !ok {
		return ErrNoPendingCharge
	}
	p.done <- res
	return nil
}

func (a *Adapter) remove(orderRef string) {
	a.mu.Lock()
	delete(a.pending, orderRef)
	a.mu.Unlock()
}

// Options is the configuration the storefront passes to the hosted widget.
// Field names follow the Razorpay checkout.js contract.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Prefill seeds the widget's contact fields.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Theme styles the widget.
type Theme struct {
	Color string `json:"color"`
}

// PendingOptions returns the widget options for a charge currently awaiting
// resolution, or false when no charge is pending for the reference.
func (a *Adapter) PendingOptions(orderRef string) (Options, bool) {
	a.mu.Lock()
	p, ok := a.pending[orderRef]
	a.mu.Unlock()
	if !ok {
		return Options{}, false
	}
	return Options{
		Key:         a.cfg.KeyID,
		Amount:      p.amountPaise,
		Currency:    "INR",
		Name:        a.cfg.MerchantName,
		Description: a.cfg.Description,
		OrderID:     p.req.OrderReference,
		Prefill: Prefill{
			Name:    p.req.Name,
			Email:   p.req.Email,
			Contact: p.req.Phone,
		},
		Theme: Theme{Color: a.cfg.ThemeColor},
	}, true
}
