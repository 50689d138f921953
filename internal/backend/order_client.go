package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/requestmeta"
)

// OrderClient implements order.Gateway against POST /orders.
type OrderClient struct{ c *Client }

func NewOrderClient(c *Client) *OrderClient { return &OrderClient{c: c} }

var _ order.Gateway = (*OrderClient)(nil)

type orderRequestDTO struct {
	Customer       orderCustomerDTO  `json:"customer_info"`
	PaymentMethod  string            `json:"payment_method"`
	Items          []orderItemDTO    `json:"items"`
	PricingSummary pricingSummaryDTO `json:"pricing_summary"`
	CouponCode     string            `json:"coupon_code,omitempty"`
}

type orderCustomerDTO struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
}

type orderItemDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type pricingSummaryDTO struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	ItemsCount int             `json:"items_count"`
}

type orderResponseDTO struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Submit posts the order. The idempotency key rides in the
// x-idempotency-key header so the backend can deduplicate retries.
func (oc *OrderClient) Submit(ctx context.Context, req order.Request) (*order.Order, error) {
	dto := orderRequestDTO{
		Customer: orderCustomerDTO{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			Address: req.Customer.Address,
		},
		PaymentMethod: req.PaymentMethod,
		Items:         make([]orderItemDTO, len(req.Items)),
		PricingSummary: pricingSummaryDTO{
			Subtotal:   req.Summary.Subtotal,
			Tax:        req.Summary.Tax,
			Shipping:   req.Summary.Shipping,
			Discount:   req.Summary.Discount,
			Total:      req.Summary.Total,
			ItemsCount: req.Summary.ItemsCount,
		},
		CouponCode: req.CouponCode,
	}
	for i, it := range req.Items {
		dto.Items[i] = orderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}

	ctx = requestmeta.WithIdempotencyKey(ctx, req.IdempotencyKey)

	var res orderResponseDTO
	if err := oc.c.do(ctx, http.MethodPost, "/orders", dto, &res); err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, &order.SubmissionError{
				StatusCode: se.StatusCode,
				Code:       se.Code,
				Message:    se.Message,
			}
		}
		return nil, &order.SubmissionError{Code: "network_error", Message: err.Error()}
	}

	return &order.Order{
		ID:        res.OrderID,
		Number:    res.OrderNumber,
		Total:     res.Total,
		CreatedAt: res.CreatedAt,
	}, nil
}
