package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unisouk/storefront-checkout/internal/domain/address"
	"github.com/unisouk/storefront-checkout/internal/domain/shipping"
)

// Misuse errors. These indicate a caller driving the wizard out of contract;
// submission failures never surface here, they land in the state's error
// slots instead.
var (
	ErrNotAtReview           = errors.New("order can only be placed from the review step")
	ErrSubmissionInFlight    = errors.New("a submission is already in progress")
	ErrTerminal              = errors.New("checkout is already confirmed")
	ErrOutOfOrder            = errors.New("earlier steps must be completed first")
	ErrForwardNavigation     = errors.New("only earlier steps can be navigated to")
	ErrInvalidStep           = errors.New("unknown wizard step")
	ErrInvalidShippingMethod = errors.New("unknown shipping method")
	ErrInvalidPaymentMethod  = errors.New("unknown payment method")
)

// User-facing failure messages surfaced through the error slots.
const (
	msgMissingSession   = "Missing cart or customer information. Please refresh the page."
	msgNoResponse       = "No response from server. Please try again."
	msgNoOrderID        = "Order ID not received from server."
	msgOrderFallback    = "Failed to create order. Please try again."
	msgPaymentCancelled = "Payment cancelled or failed. Please contact support."
	msgPaymentFallback  = "Payment failed. Please try again."
)

// Deps are the external collaborators a wizard drives.
type Deps struct {
	Orders   OrderSubmitter
	Gateway  Gateway
	Sessions SessionStore

	// ChannelType tags created orders; defaults to "DEFAULT".
	ChannelType string
	Logger      *zap.Logger
}

// Wizard is one customer's checkout attempt: a five-step state machine that
// accumulates billing, shipping, and payment selections and finally submits
// the order. All methods are safe for concurrent use; the two in-flight
// flags guarantee at most one submission runs at a time.
type Wizard struct {
	mu sync.Mutex

	id             string
	sessionToken   string
	idempotencyKey string
	cart           CartSnapshot
	createdAt      time.Time

	step           Step
	billing        address.Record
	shippingChoice ShippingChoice
	shippingMethod shipping.Method
	payment        PaymentMethod

	submissionInFlight  bool
	paymentInFlight     bool
	orderError          string
	paymentError        string
	confirmedOrderID    string
	pendingGatewayOrder string

	deps Deps
}

// State is an immutable snapshot of the wizard for callers and transport.
type State struct {
	ID                    string          `json:"id"`
	Step                  Step            `json:"step"`
	StepName              string          `json:"stepName"`
	Billing               address.Record  `json:"billing"`
	ShippingSameAsBilling bool            `json:"shippingSameAsBilling"`
	ShippingAddress       address.Record  `json:"shippingAddress"`
	ShippingMethod        shipping.Method `json:"shippingMethod"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod"`
	SubmissionInFlight    bool            `json:"submissionInFlight"`
	PaymentInFlight       bool            `json:"paymentInFlight"`
	OrderError            string          `json:"orderError,omitempty"`
	PaymentError          string          `json:"paymentError,omitempty"`
	ConfirmedOrderID      string          `json:"confirmedOrderId,omitempty"`
	PendingGatewayOrder   string          `json:"pendingGatewayOrder,omitempty"`
	Cart                  CartSnapshot    `json:"cart"`
	Summary               Summary         `json:"summary"`
}

// NewWizard creates a wizard at the billing step for the given session and
// cart snapshot. The idempotency key for order creation is minted here, once
// per checkout, so retries of the same wizard cannot duplicate orders.
func NewWizard(sessionToken string, cart CartSnapshot, deps Deps) *Wizard {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ChannelType == "" {
		deps.ChannelType = "DEFAULT"
	}
	return &Wizard{
		id:             uuid.New().String(),
		sessionToken:   sessionToken,
		idempotencyKey: uuid.New().String(),
		cart:           cart,
		createdAt:      time.Now(),
		step:           StepBilling,
		shippingChoice: ShipToBilling(),
		shippingMethod: shipping.Default,
		payment:        CashOnDelivery,
		deps:           deps,
	}
}

// ID returns the wizard identifier.
func (w *Wizard) ID() string { return w.id }

// SessionToken returns the session this wizard belongs to.
func (w *Wizard) SessionToken() string { return w.sessionToken }

// State returns a snapshot of the current wizard state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

// stateLocked builds a snapshot. Callers must hold w.mu.
func (w *Wizard) stateLocked() State {
	return State{
		ID:                    w.id,
		Step:                  w.step,
		StepName:              w.step.String(),
		Billing:               w.billing,
		ShippingSameAsBilling: w.shippingChoice.SameAsBilling(),
		ShippingAddress:       w.shippingChoice.Resolve(w.billing),
		ShippingMethod:        w.shippingMethod,
		PaymentMethod:         w.payment,
		SubmissionInFlight:    w.submissionInFlight,
		PaymentInFlight:       w.paymentInFlight,
		OrderError:            w.orderError,
		PaymentError:          w.paymentError,
		ConfirmedOrderID:      w.confirmedOrderID,
		PendingGatewayOrder:   w.pendingGatewayOrder,
		Cart:                  w.cart,
		Summary:               ComputeSummary(w.cart.TotalAmount, w.shippingMethod),
	}
}

// guardMutableLocked rejects edits on a confirmed or in-flight wizard.
// Callers must hold w.mu.
func (w *Wizard) guardMutableLocked() error {
	if w.step == StepConfirmation {
		return ErrTerminal
	}
	if w.submissionInFlight || w.paymentInFlight {
		return ErrSubmissionInFlight
	}
	return nil
}

// SubmitBilling validates the billing record and, when valid, stores it and
// advances to the shipping step. An invalid record is reported through the
// returned Result without any state change. When sameAsBilling is true the
// shipping address becomes a derived view of the billing record, reflecting
// every later billing edit.
func (w *Wizard) SubmitBilling(rec address.Record, sameAsBilling bool) (address.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardMutableLocked(); err != nil {
		return address.Result{}, err
	}

	res := address.Validate(rec)
	if !res.Valid() {
		return res, nil
	}

	w.billing = rec
	switch {
	case sameAsBilling:
		w.shippingChoice = ShipToBilling()
	case w.shippingChoice.SameAsBilling():
		// Unticking the flag starts a fresh shipping address.
		w.shippingChoice = ShipTo(address.Record{})
	}
	w.step = StepShipping
	return res, nil
}

// SubmitShipping records the delivery method (defaulting to standard) and,
// when a custom address is given, replaces the shipping address with it,
// then advances to the payment method step. No address validation happens
// here; the shipping step only gates on the method being known.
func (w *Wizard) SubmitShipping(custom *address.Record, method shipping.Method) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardMutableLocked(); err != nil {
		return err
	}
	if w.step < StepShipping {
		return ErrOutOfOrder
	}

	if method == "" {
		method = shipping.Default
	}
	if !method.Valid() {
		return ErrInvalidShippingMethod
	}

	w.shippingMethod = method
	if custom != nil {
		w.shippingChoice = ShipTo(*custom)
	}
	w.step = StepPaymentMethod
	return nil
}

// SelectPaymentMethod records the payment branch and advances to review.
func (w *Wizard) SelectPaymentMethod(method PaymentMethod) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardMutableLocked(); err != nil {
		return err
	}
	if w.step < StepPaymentMethod {
		return ErrOutOfOrder
	}

	if method == "" {
		method = CashOnDelivery
	}
	if !method.Valid() {
		return ErrInvalidPaymentMethod
	}

	w.payment = method
	w.step = StepReview
	return nil
}

// Navigate moves the wizard back to an earlier step. No data is discarded;
// forward movement happens only through the step submissions.
func (w *Wizard) Navigate(to Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardMutableLocked(); err != nil {
		return err
	}
	if !to.Valid() {
		return ErrInvalidStep
	}
	if to >= w.step {
		return ErrForwardNavigation
	}

	w.step = to
	return nil
}

// DismissOrderError clears the order error slot without changing the wizard
// position or retrying anything.
func (w *Wizard) DismissOrderError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.orderError = ""
}

// DismissPaymentError clears the payment error slot.
func (w *Wizard) DismissPaymentError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paymentError = ""
}

// Summary returns the current order totals.
func (w *Wizard) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ComputeSummary(w.cart.TotalAmount, w.shippingMethod)
}

// Submit places the order. It must be called from the review step and runs
// at most once at a time; the in-flight flags double as the duplicate-click
// latch. All submission failures are recorded in the returned state's error
// slots with the wizard held at review; the error return is reserved for
// contract misuse.
//
// Sequence: precondition guard on the session identity (no network call on
// failure), order creation against the commerce API, then a blocking charge
// through the hosted payment widget on the card gateway branch.
// The persisted cart identifier is cleared exactly once, on the path that
// reaches confirmation.
func (w *Wizard) Submit(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.step != StepReview {
		st := w.stateLocked()
		w.mu.Unlock()
		return st, ErrNotAtReview
	}
	if w.submissionInFlight || w.paymentInFlight {
		st := w.stateLocked()
		w.mu.Unlock()
		return st, ErrSubmissionInFlight
	}
	w.submissionInFlight = true
	w.orderError = ""
	token := w.sessionToken
	method := w.payment
	billing := w.billing
	shipSame := w.shippingChoice.SameAsBilling()
	shipAddr := w.shippingChoice.Resolve(w.billing)
	summary := ComputeSummary(w.cart.TotalAmount, w.shippingMethod)
	key := w.idempotencyKey
	w.mu.Unlock()

	lg := w.deps.Logger.With(zap.String("checkout_id", w.id))

	ident, err := w.deps.Sessions.Get(ctx, token)
	if err != nil {
		lg.Error("read session identity", zap.Error(err))
		return w.failOrder(msgMissingSession), nil
	}
	if ident.CartID == "" || ident.CustomerID == "" {
		return w.failOrder(msgMissingSession), nil
	}

	payload := buildPayload(ident, w.deps.ChannelType, method, billing, shipSame, shipAddr, summary)
	res, err := w.deps.Orders.CreateOrder(ctx, payload, key)
	switch {
	case err != nil:
		lg.Warn("order creation failed", zap.Error(err))
		return w.failOrder(orderMessage(err)), nil
	case res == nil:
		return w.failOrder(msgNoResponse), nil
	}

	if method == CashOnDelivery {
		if res.OrderID == "" {
			// 2xx response missing the identifier: a malformed success is
			// still a submission failure.
			return w.failOrder(msgNoOrderID), nil
		}
		lg.Info("order placed", zap.String("order_id", res.OrderID), zap.String("payment_method", string(method)))
		return w.confirm(ctx, lg, res.OrderID), nil
	}

	ref := res.GatewayOrderID
	if ref == "" {
		return w.failOrder(msgNoOrderID), nil
	}

	w.mu.Lock()
	w.paymentInFlight = true
	w.pendingGatewayOrder = ref
	w.mu.Unlock()

	outcome, err := w.deps.Gateway.Charge(ctx, ChargeRequest{
		Amount:         summary.Total,
		OrderReference: ref,
		Email:          billing.Email,
		Phone:          billing.Phone,
		Name:           billing.FullName(),
	})
	switch {
	case err != nil:
		lg.Warn("gateway charge failed", zap.String("gateway_order", ref), zap.Error(err))
		return w.failPayment(paymentMessage(err)), nil
	case outcome != ChargeCaptured:
		lg.Info("gateway charge cancelled", zap.String("gateway_order", ref))
		return w.failPayment(msgPaymentCancelled), nil
	}

	lg.Info("order placed", zap.String("order_id", ref), zap.String("payment_method", string(method)))
	return w.confirm(ctx, lg, ref), nil
}

// confirm finalizes a successful submission: clears the persisted cart
// identifier and moves the wizard to the confirmation step.
func (w *Wizard) confirm(ctx context.Context, lg *zap.Logger, orderID string) State {
	if err := w.deps.Sessions.ClearCartID(ctx, w.sessionToken); err != nil {
		// The order already exists server-side; holding the wizard at review
		// would invite a duplicate submission, so confirm anyway.
		lg.Error("clear cart id", zap.Error(err), zap.String("order_id", orderID))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirmedOrderID = orderID
	w.step = StepConfirmation
	w.submissionInFlight = false
	w.paymentInFlight = false
	w.pendingGatewayOrder = ""
	return w.stateLocked()
}

func (w *Wizard) failOrder(msg string) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.orderError = msg
	w.submissionInFlight = false
	w.paymentInFlight = false
	w.pendingGatewayOrder = ""
	return w.stateLocked()
}

func (w *Wizard) failPayment(msg string) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paymentError = msg
	w.submissionInFlight = false
	w.paymentInFlight = false
	w.pendingGatewayOrder = ""
	return w.stateLocked()
}

// orderMessage derives the user-facing order error, preferring the server's
// message when the commerce API supplied one.
func orderMessage(err error) string {
	var se *SubmissionError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return msgOrderFallback
}

// paymentMessage derives the user-facing payment error from a gateway
// failure.
func paymentMessage(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Error()
	}
	return msgPaymentFallback
}
