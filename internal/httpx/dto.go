package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

type AddItemRequest struct {
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	SaleUnitPrice *decimal.Decimal `json:"sale_unit_price,omitempty"`
	Quantity      int              `json:"quantity"`
	StockCeiling  int              `json:"stock_ceiling"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
	// ConfirmRemoval must be set for a zero quantity to delete the line.
	ConfirmRemoval bool `json:"confirm_removal,omitempty"`
}

type CustomerInfoRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
}

type SelectPaymentRequest struct {
	Method string `json:"method"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type LineItemResponse struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	SaleUnitPrice *decimal.Decimal `json:"sale_unit_price,omitempty"`
	Currency      string           `json:"currency"`
	Quantity      int              `json:"quantity"`
	StockCeiling  int              `json:"stock_ceiling"`
	OutOfStock    bool             `json:"out_of_stock"`
}

type SummaryResponse struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	ItemsCount int             `json:"items_count"`
	Currency   string          `json:"currency"`
}

type CartResponse struct {
	Items   []LineItemResponse `json:"items"`
	Summary SummaryResponse    `json:"summary"`
	// CheckoutBlocked is set while out-of-stock lines remain in the cart.
	CheckoutBlocked bool `json:"checkout_blocked"`
}

type UpdateItemResponse struct {
	Item    *LineItemResponse `json:"item,omitempty"`
	Clamped bool              `json:"clamped"`
	Removed bool              `json:"removed"`
	Summary SummaryResponse   `json:"summary"`
}

type CouponResponse struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Magnitude    decimal.Decimal `json:"magnitude"`
	Summary      SummaryResponse `json:"summary"`
}

type CheckoutResponse struct {
	SessionID     string          `json:"session_id"`
	Step          string          `json:"step"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	Summary       SummaryResponse `json:"summary"`
}

type OrderResponse struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message,omitempty"`
	Fields  []checkout.FieldError `json:"fields,omitempty"`
	// Shortfall is present on coupon minimum-not-met rejections.
	Shortfall *decimal.Decimal `json:"shortfall,omitempty"`
}

func mapLineItem(it cart.LineItem) LineItemResponse {
	res := LineItemResponse{
		ID:           it.ID.String(),
		ProductID:    it.ProductID,
		ProductName:  it.ProductName,
		UnitPrice:    it.UnitPrice.Amount,
		Currency:     it.UnitPrice.Currency.String(),
		Quantity:     it.Quantity,
		StockCeiling: it.StockCeiling,
		OutOfStock:   it.OutOfStock(),
	}
	if it.SaleUnitPrice != nil {
		amount := it.SaleUnitPrice.Amount
		res.SaleUnitPrice = &amount
	}
	return res
}

func mapItems(items []cart.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for i, it := range items {
		out[i] = mapLineItem(it)
	}
	return out
}

func (h *Handler) mapSummary(s pricing.Summary) SummaryResponse {
	return SummaryResponse{
		Subtotal:   s.Subtotal,
		Tax:        s.Tax,
		Shipping:   s.Shipping,
		Discount:   s.Discount,
		Total:      s.Total,
		ItemsCount: s.ItemsCount,
		Currency:   h.currency.String(),
	}
}

func (h *Handler) mapCheckout(m *checkout.Machine) CheckoutResponse {
	session := m.Session()
	res := CheckoutResponse{
		SessionID:     session.ID.String(),
		Step:          session.Step.String(),
		PaymentMethod: string(session.PaymentMethod),
		Summary:       h.mapSummary(m.Summary()),
	}
	if session.Coupon != nil {
		res.CouponCode = session.Coupon.Code
	}
	return res
}

func mapCouponError(ce *coupon.Error) ErrorResponse {
	res := ErrorResponse{
		Error:   "coupon_" + string(ce.Reason),
		Message: ce.Error(),
	}
	if ce.Reason == coupon.ReasonMinimumNotMet {
		shortfall := ce.Shortfall
		res.Shortfall = &shortfall
	}
	return res
}

func mapOrder(o *order.Order) OrderResponse {
	return OrderResponse{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Total:       o.Total,
		CreatedAt:   o.CreatedAt,
	}
}
