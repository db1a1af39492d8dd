package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/unisouk/storefront-checkout/internal/commerce"
	"github.com/unisouk/storefront-checkout/internal/domain/address"
	"github.com/unisouk/storefront-checkout/internal/domain/checkout"
	"github.com/unisouk/storefront-checkout/internal/domain/shipping"
)

type buyNowItemDTO struct {
	VariantID string          `json:"variantId"`
	Title     string          `json:"title"`
	BrandName string          `json:"brandName"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Images    []string        `json:"images,omitempty"`
}

type startCheckoutRequest struct {
	// BuyNow, when present, checks out a single item directly instead of the
	// persisted cart.
	BuyNow *buyNowItemDTO `json:"buyNow,omitempty"`
}

// POST /api/v1/checkout
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.Header.Get(HeaderSessionToken)
	if token == "" {
		respondError(ctx, w, http.StatusBadRequest, "session token required")
		return
	}

	var req startCheckoutRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ident, err := h.sessions.Get(ctx, token)
	if err != nil {
		zctx.From(ctx).Error("read session", zap.Error(err))
		respondError(ctx, w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	var cart checkout.CartSnapshot
	if req.BuyNow != nil {
		if req.BuyNow.Quantity <= 0 {
			respondError(ctx, w, http.StatusBadRequest, "quantity must be positive")
			return
		}
		cart = checkout.BuyNowCart(ident.CartID, checkout.LineItem{
			VariantID: req.BuyNow.VariantID,
			Title:     req.BuyNow.Title,
			BrandName: req.BuyNow.BrandName,
			SKU:       req.BuyNow.SKU,
			UnitPrice: req.BuyNow.Price,
			Quantity:  req.BuyNow.Quantity,
			Images:    req.BuyNow.Images,
		})
	} else {
		if ident.CartID == "" {
			respondError(ctx, w, http.StatusConflict, "Missing cart or customer information. Please refresh the page.")
			return
		}
		snap, err := h.carts.GetCart(ctx, ident.CartID)
		switch {
		case errors.Is(err, commerce.ErrCartNotFound):
			respondError(ctx, w, http.StatusNotFound, "cart not found")
			return
		case err != nil:
			zctx.From(ctx).Error("fetch cart", zap.String("cart_id", ident.CartID), zap.Error(err))
			respondError(ctx, w, http.StatusBadGateway, "commerce API unavailable")
			return
		}
		cart = *snap
	}

	wiz := checkout.NewWizard(token, cart, checkout.Deps{
		Orders:      h.orders,
		Gateway:     h.gateway,
		Sessions:    h.sessions,
		ChannelType: h.cfg.ChannelType,
		Logger:      zctx.From(ctx),
	})
	h.registry.Put(wiz)
	h.metrics.started.Add(ctx, 1)

	respondJSON(ctx, w, http.StatusCreated, wiz.State())
}

// GET /api/v1/checkout/shipping-options
func (h *Handler) shippingOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, shipping.Options())
}

// GET /api/v1/checkout/{checkoutID}
func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, wiz.State())
}

// DELETE /api/v1/checkout/{checkoutID}
func (h *Handler) closeCheckout(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}
	h.registry.Remove(wiz.ID())
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/checkout/{checkoutID}/summary
func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, wiz.Summary())
}

type billingRequest struct {
	Address        address.Record `json:"address"`
	IsShippingSame bool           `json:"isShippingSame"`
}

// PUT /api/v1/checkout/{checkoutID}/billing
func (h *Handler) submitBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req billingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := wiz.SubmitBilling(req.Address, req.IsShippingSame)
	if err != nil {
		respondWizardError(ctx, w, err)
		return
	}
	if !res.Valid() {
		fields := make(map[string]string, len(res.FieldErrors))
		for _, fe := range res.FieldErrors {
			if _, dup := fields[fe.Field]; !dup {
				fields[fe.Field] = fe.Message
			}
		}
		respondJSON(ctx, w, http.StatusUnprocessableEntity, validationResponse{
			Code:        http.StatusUnprocessableEntity,
			Message:     res.First,
			FieldErrors: fields,
		})
		return
	}
	respondJSON(ctx, w, http.StatusOK, wiz.State())
}

type shippingRequest struct {
	Method string `json:"method"`
	// Address, when present, ships to a separately entered address instead of
	// the billing one.
	Address *address.Record `json:"address,omitempty"`
}

// PUT /api/v1/checkout/{checkoutID}/shipping
func (h *Handler) submitShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req shippingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := wiz.SubmitShipping(req.Address, shipping.Method(req.Method)); err != nil {
		respondWizardError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, wiz.State())
}

type paymentMethodRequest struct {
	Method string `json:"method"`
}

// PUT /api/v1/checkout/{checkoutID}/payment-method
func (h *Handler) selectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req paymentMethodRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := wiz.SelectPaymentMethod(checkout.PaymentMethod(req.Method)); err != nil {
		respondWizardError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, wiz.State())
}

type navigateRequest struct {
	Step int `json:"step"`
}

// POST /api/v1/checkout/{checkoutID}/navigate
func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req navigateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := wiz.Navigate(checkout.Step(req.Step)); err != nil {
		respondWizardError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, wiz.State())
}

// POST /api/v1/checkout/{checkoutID}/submit
func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	state, err := wiz.Submit(ctx)
	if err != nil {
		respondWizardError(ctx, w, err)
		return
	}

	attrs := metric.WithAttributes(attribute.String("payment_method", string(state.PaymentMethod)))
	if state.ConfirmedOrderID != "" {
		h.metrics.ordersPlaced.Add(ctx, 1, attrs)
	} else {
		h.metrics.ordersFailed.Add(ctx, 1, attrs)
	}
	respondJSON(ctx, w, http.StatusOK, state)
}

// GET /api/v1/checkout/{checkoutID}/payment/options
func (h *Handler) paymentOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	ref := wiz.State().PendingGatewayOrder
	if ref == "" {
		respondError(ctx, w, http.StatusNotFound, "no payment awaiting confirmation")
		return
	}
	opts, ok := h.gateway.PendingOptions(ref)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "no payment awaiting confirmation")
		return
	}
	respondJSON(ctx, w, http.StatusOK, opts)
}

// Widget outcome statuses accepted by the payment callback.
const (
	callbackCaptured  = "captured"
	callbackCancelled = "cancelled"
	callbackFailed    = "failed"
)

type paymentCallbackRequest struct {
	Status string `json:"status"`
	// PaymentID is the gateway's payment identifier, logged for support.
	PaymentID string `json:"paymentId,omitempty"`
	// Description carries the failure reason from the widget's payment.failed
	// event.
	Description string `json:"description,omitempty"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// POST /api/v1/checkout/{checkoutID}/payment/callback
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req paymentCallbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ref := wiz.State().PendingGatewayOrder
	if ref == "" {
		respondError(ctx, w, http.StatusConflict, "no payment awaiting confirmation")
		return
	}

	var err error
	switch req.Status {
	case callbackCaptured:
		zctx.From(ctx).Info("payment captured",
			zap.String("gateway_order", ref), zap.String("payment_id", req.PaymentID))
		err = h.gateway.Resolve(ref)
	case callbackCancelled:
		err = h.gateway.Cancel(ref)
	case callbackFailed:
		err = h.gateway.Fail(ref, req.Description)
	default:
		respondError(ctx, w, http.StatusBadRequest, "unknown callback status")
		return
	}
	if err != nil {
		respondError(ctx, w, http.StatusConflict, "no payment awaiting confirmation")
		return
	}
	respondJSON(ctx, w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

// Dismissable error slots.
const (
	slotOrder   = "order"
	slotPayment = "payment"
)

type dismissErrorRequest struct {
	Slot string `json:"slot"`
}

// POST /api/v1/checkout/{checkoutID}/errors/dismiss
func (h *Handler) dismissError(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, ok := h.wizardFromRequest(w, r)
	if !ok {
		return
	}

	var req dismissErrorRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Slot {
	case slotOrder:
		wiz.DismissOrderError()
	case slotPayment:
		wiz.DismissPaymentError()
	default:
		respondError(ctx, w, http.StatusBadRequest, "unknown error slot")
		return
	}
	respondJSON(ctx, w, http.StatusOK, wiz.State())
}
