// Package httpx exposes the checkout engine over HTTP: cart editing, coupon
// application, and the guarded checkout step flow.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// HeaderSessionID identifies the storefront session owning the cart. The
// handler mints one on first contact and echoes it back on every response.
const HeaderSessionID = "X-Session-Id"

// Handler serves the storefront endpoints.
type Handler struct {
	carts     *CartHub
	checkouts *checkout.Manager
	currency  currency.Unit
}

func NewHandler(carts *CartHub, checkouts *checkout.Manager, unit currency.Unit) *Handler {
	return &Handler{
		carts:     carts,
		checkouts: checkouts,
		currency:  unit,
	}
}

// cartSession resolves (or mints) the storefront session and its cart.
func (h *Handler) cartSession(w http.ResponseWriter, r *http.Request) (string, *cart.Store) {
	sid := r.Header.Get(HeaderSessionID)
	if sid == "" {
		sid = uuid.NewString()
	}
	w.Header().Set(HeaderSessionID, sid)
	return sid, h.carts.ForSession(r.Context(), sid)
}

// GetCart returns the cart lines with the current (coupon-less) summary.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	_, store := h.cartSession(w, r)
	writeJSON(w, http.StatusOK, CartResponse{
		Items:           mapItems(store.Items()),
		Summary:         h.mapSummary(store.Summary()),
		CheckoutBlocked: len(store.BlockingItems()) > 0,
	})
}

// AddItem puts a product into the cart, merging with an existing line for
// the same product.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_item", "product_id and a positive quantity are required")
		return
	}
	if req.UnitPrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_item", "unit_price must not be negative")
		return
	}
	if req.SaleUnitPrice != nil && req.SaleUnitPrice.GreaterThan(req.UnitPrice) {
		writeError(w, http.StatusBadRequest, "invalid_item", "sale_unit_price must not exceed unit_price")
		return
	}

	sid, store := h.cartSession(w, r)
	item := cart.LineItem{
		ProductID:    req.ProductID,
		ProductName:  req.ProductName,
		UnitPrice:    pricing.Money{Amount: req.UnitPrice, Currency: h.currency},
		Quantity:     req.Quantity,
		StockCeiling: req.StockCeiling,
	}
	if req.SaleUnitPrice != nil {
		item.SaleUnitPrice = &pricing.Money{Amount: *req.SaleUnitPrice, Currency: h.currency}
	}

	added, clamped := store.AddItem(item)
	h.carts.Persist(r.Context(), sid)

	res := mapLineItem(added)
	writeJSON(w, http.StatusCreated, UpdateItemResponse{
		Item:    &res,
		Clamped: clamped,
		Summary: h.mapSummary(store.Summary()),
	})
}

// UpdateItemQuantity changes a line's quantity. Requests above the stock
// ceiling are clamped and flagged; zero requires confirm_removal.
func (h *Handler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_item_id", err.Error())
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	sid, store := h.cartSession(w, r)
	result, err := store.UpdateQuantity(r.Context(), itemID, req.Quantity, req.ConfirmRemoval)
	if err != nil {
		var syncErr *cart.SyncError
		if errors.As(err, &syncErr) {
			// Local state already holds the change; report it with a retry hint.
			slog.WarnContext(r.Context(), "cart sync failed, local state kept", "error", err)
			h.carts.Persist(r.Context(), sid)
			writeItemUpdate(w, http.StatusAccepted, h, store, result)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	h.carts.Persist(r.Context(), sid)
	writeItemUpdate(w, http.StatusOK, h, store, result)
}

// RemoveItem deletes a line outright.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_item_id", err.Error())
		return
	}

	sid, store := h.cartSession(w, r)
	if err := store.RemoveItem(r.Context(), itemID); err != nil {
		var syncErr *cart.SyncError
		if !errors.As(err, &syncErr) {
			h.writeDomainError(w, err)
			return
		}
		slog.WarnContext(r.Context(), "cart sync failed, local state kept", "error", err)
	}
	h.carts.Persist(r.Context(), sid)
	writeJSON(w, http.StatusOK, CartResponse{
		Items:           mapItems(store.Items()),
		Summary:         h.mapSummary(store.Summary()),
		CheckoutBlocked: len(store.BlockingItems()) > 0,
	})
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sid, store := h.cartSession(w, r)
	if err := store.Clear(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "remote cart clear incomplete", "error", err)
	}
	h.carts.Persist(r.Context(), sid)
	w.WriteHeader(http.StatusNoContent)
}

// BeginCheckout opens a checkout session over the current cart.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	_, store := h.cartSession(w, r)
	m, err := h.checkouts.Begin(r.Context(), store)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.mapCheckout(m))
}

// GetCheckout returns the session state and a fresh summary.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// SetCustomerInfo stores the buyer details for the session.
func (h *Handler) SetCustomerInfo(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req CustomerInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := m.SetCustomerInfo(checkout.CustomerInfo{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// SelectPayment stores the chosen payment method.
func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req SelectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := m.SelectPayment(checkout.PaymentMethod(req.Method)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// ApplyCoupon validates and attaches a coupon to the session.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	d, err := m.ApplyCoupon(r.Context(), req.Code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CouponResponse{
		Code:         d.Code,
		DiscountType: string(d.DiscountType),
		Magnitude:    d.Magnitude,
		Summary:      h.mapSummary(m.Summary()),
	})
}

// RemoveCoupon detaches the applied coupon; pricing reverts exactly.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	m.RemoveCoupon()
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// NextStep advances the checkout one step after validating the current one.
func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if _, err := m.Next(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// BackStep moves one step backward, preserving entered data.
func (h *Handler) BackStep(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if _, err := m.Back(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapCheckout(m))
}

// Confirm submits the order. At most one submission leaves per confirmation;
// on backend failure the session stays at review for a retry.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	ord, err := m.Confirm(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sid := r.Header.Get(HeaderSessionID)
	if sid != "" {
		h.carts.Persist(r.Context(), sid)
	}
	writeJSON(w, http.StatusCreated, mapOrder(ord))
}

// AbandonCheckout drops the session; the cart survives.
func (h *Handler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", err.Error())
		return
	}
	h.checkouts.End(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) machine(w http.ResponseWriter, r *http.Request) (*checkout.Machine, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", err.Error())
		return nil, false
	}
	m, err := h.checkouts.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	return m, true
}

// writeDomainError maps engine errors onto HTTP statuses. Everything the
// taxonomy calls recoverable comes back as a structured 4xx/502; only
// unclassified failures fall through to 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	if ve, ok := checkout.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: ve.Error(),
			Fields:  ve.Fields,
		})
		return
	}
	if ce, ok := coupon.AsError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, mapCouponError(ce))
		return
	}

	var subErr *order.SubmissionError
	var syncErr *cart.SyncError
	switch {
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, checkout.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, cart.ErrRemovalNotConfirmed):
		writeError(w, http.StatusConflict, "confirm_removal_required", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrOutOfStockItems):
		writeError(w, http.StatusConflict, "out_of_stock_items", err.Error())
	case errors.Is(err, checkout.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, checkout.ErrAlreadySubmitted),
		errors.Is(err, checkout.ErrNotAtReview),
		errors.Is(err, checkout.ErrAwaitingConfirmation):
		writeError(w, http.StatusConflict, "invalid_step", err.Error())
	case errors.As(err, &subErr):
		writeError(w, http.StatusBadGateway, "submission_failed", subErr.Error())
	case errors.As(err, &syncErr):
		writeError(w, http.StatusBadGateway, "cart_sync_failed", syncErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeItemUpdate(w http.ResponseWriter, status int, h *Handler, store *cart.Store, result cart.UpdateResult) {
	res := UpdateItemResponse{
		Clamped: result.Clamped,
		Removed: result.Removed,
		Summary: h.mapSummary(store.Summary()),
	}
	if !result.Removed {
		item := mapLineItem(result.Item)
		res.Item = &item
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
