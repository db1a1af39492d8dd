// Package handler exposes the checkout wizard over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/unisouk/storefront-checkout/internal/domain/checkout"
	"github.com/unisouk/storefront-checkout/internal/payment/razorpay"
	"github.com/unisouk/storefront-checkout/internal/session"
)

// HeaderSessionToken identifies the storefront session on every wizard route.
const HeaderSessionToken = "X-Session-Token"

// CartFetcher loads the persisted cart snapshot at wizard entry.
type CartFetcher interface {
	GetCart(ctx context.Context, cartID string) (*checkout.CartSnapshot, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ChannelType tags created orders; defaults to "DEFAULT".
	ChannelType string
}

// Handler wires the wizard registry and its collaborators to the HTTP routes.
type Handler struct {
	cfg      Config
	registry *checkout.Registry
	carts    CartFetcher
	orders   checkout.OrderSubmitter
	gateway  *razorpay.Adapter
	sessions session.Store
	metrics  handlerMetrics
}

type handlerMetrics struct {
	started      metric.Int64Counter
	ordersPlaced metric.Int64Counter
	ordersFailed metric.Int64Counter
}

func newHandlerMetrics(meter metric.Meter) (handlerMetrics, error) {
	var m handlerMetrics
	var err error
	if m.started, err = meter.Int64Counter("checkout.wizards.started"); err != nil {
		return m, errors.Wrap(err, "started counter")
	}
	if m.ordersPlaced, err = meter.Int64Counter("checkout.orders.placed"); err != nil {
		return m, errors.Wrap(err, "placed counter")
	}
	if m.ordersFailed, err = meter.Int64Counter("checkout.orders.failed"); err != nil {
		return m, errors.Wrap(err, "failed counter")
	}
	return m, nil
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	cfg Config,
	registry *checkout.Registry,
	carts CartFetcher,
	orders checkout.OrderSubmitter,
	gateway *razorpay.Adapter,
	sessions session.Store,
	meter metric.Meter,
) (*Handler, error) {
	m, err := newHandlerMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return &Handler{
		cfg:      cfg,
		registry: registry,
		carts:    carts,
		orders:   orders,
		gateway:  gateway,
		sessions: sessions,
		metrics:  m,
	}, nil
}

// Routes returns the wizard route tree, meant to be mounted under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.startCheckout)
		r.Get("/shipping-options", h.shippingOptions)
		r.Route("/{checkoutID}", func(r chi.Router) {
			r.Get("/", h.getState)
			r.Delete("/", h.closeCheckout)
			r.Get("/summary", h.getSummary)
			r.Put("/billing", h.submitBilling)
			r.Put("/shipping", h.submitShipping)
			r.Put("/payment-method", h.selectPaymentMethod)
			r.Post("/navigate", h.navigate)
			r.Post("/submit", h.submitOrder)
			r.Get("/payment/options", h.paymentOptions)
			r.Post("/payment/callback", h.paymentCallback)
			r.Post("/errors/dismiss", h.dismissError)
		})
	})
	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type validationResponse struct {
	Code        int               `json:"code"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zctx.From(ctx).Error("encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorResponse{Code: status, Message: message})
}

// respondWizardError maps the wizard's misuse errors to HTTP statuses.
// Submission failures never arrive here; those live in the state's error
// slots.
func respondWizardError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrInvalidStep),
		errors.Is(err, checkout.ErrInvalidShippingMethod),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, checkout.ErrForwardNavigation):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrTerminal),
		errors.Is(err, checkout.ErrSubmissionInFlight),
		errors.Is(err, checkout.ErrNotAtReview),
		errors.Is(err, checkout.ErrOutOfOrder):
		respondError(ctx, w, http.StatusConflict, err.Error())
	default:
		zctx.From(ctx).Error("wizard operation", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

// wizardFromRequest resolves the wizard addressed by the route. The session
// token must match the wizard's owning session; a mismatch is reported as not
// found so foreign checkout ids are indistinguishable from absent ones.
func (h *Handler) wizardFromRequest(w http.ResponseWriter, r *http.Request) (*checkout.Wizard, bool) {
	ctx := r.Context()
	token := r.Header.Get(HeaderSessionToken)
	if token == "" {
		respondError(ctx, w, http.StatusBadRequest, "session token required")
		return nil, false
	}
	id := chi.URLParam(r, "checkoutID")
	wiz, ok := h.registry.Get(id)
	if !ok || wiz.SessionToken() != token {
		respondError(ctx, w, http.StatusNotFound, "checkout not found")
		return nil, false
	}
	return wiz, true
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
