package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// CartClient implements cart.SyncClient against the backend cart resource.
type CartClient struct{ c *Client }

func NewCartClient(c *Client) *CartClient { return &CartClient{c: c} }

var _ cart.SyncClient = (*CartClient)(nil)

type cartItemDTO struct {
	ID            uuid.UUID        `json:"id"`
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	SaleUnitPrice *decimal.Decimal `json:"sale_unit_price,omitempty"`
	Currency      string           `json:"currency"`
	Quantity      int              `json:"quantity"`
	StockCeiling  int              `json:"stock_ceiling"`
}

type cartDTO struct {
	Items []cartItemDTO `json:"items"`
}

type updateQuantityDTO struct {
	Quantity int `json:"quantity"`
}

func (cc *CartClient) FetchCart(ctx context.Context) ([]cart.LineItem, error) {
	var res cartDTO
	if err := cc.c.do(ctx, http.MethodGet, "/cart", nil, &res); err != nil {
		return nil, err
	}

	items := make([]cart.LineItem, len(res.Items))
	for i, dto := range res.Items {
		item, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (cc *CartClient) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error) {
	var res cartItemDTO
	path := "/cart/items/" + itemID.String()
	if err := cc.c.do(ctx, http.MethodPatch, path, updateQuantityDTO{Quantity: quantity}, &res); err != nil {
		return cart.LineItem{}, err
	}
	return res.toDomain()
}

func (cc *CartClient) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return cc.c.do(ctx, http.MethodDelete, "/cart/items/"+itemID.String(), nil, nil)
}

func (dto cartItemDTO) toDomain() (cart.LineItem, error) {
	unit, err := currency.ParseISO(dto.Currency)
	if err != nil {
		return cart.LineItem{}, fmt.Errorf("backend: cart item %s: currency %q: %w", dto.ID, dto.Currency, err)
	}

	item := cart.LineItem{
		ID:           dto.ID,
		ProductID:    dto.ProductID,
		ProductName:  dto.ProductName,
		UnitPrice:    pricing.Money{Amount: dto.UnitPrice, Currency: unit},
		Quantity:     dto.Quantity,
		StockCeiling: dto.StockCeiling,
	}
	if dto.SaleUnitPrice != nil {
		item.SaleUnitPrice = &pricing.Money{Amount: *dto.SaleUnitPrice, Currency: unit}
	}
	return item, nil
}
