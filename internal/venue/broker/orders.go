package broker

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

var ordersLog = logrus.WithField("component", "broker_orders")

type blockOrder struct {
	BlockOrderID string `json:"block_order_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	LimitPrice   string `json:"limit_price"`
	Status       string `json:"status"`
}

type listBlockOrdersResponse struct {
	BlockOrders []blockOrder `json:"block_orders"`
}

type createBlockOrderRequest struct {
	Market      string `json:"market"`
	Side        string `json:"side"`
	Amount      string `json:"amount"`
	LimitPrice  string `json:"limit_price"`
	TimeInForce string `json:"time_in_force"`
}

type createBlockOrderResponse struct {
	BlockOrderID string `json:"block_order_id"`
}

// parseStatus maps the daemon's block order status. Unknown values are kept verbatim and are
// treated as non-terminal.
func parseStatus(s string) domain.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE":
		return domain.OrderStatusActive
	case "COMPLETE", "COMPLETED":
		return domain.OrderStatusComplete
	case "CANCELLED", "CANCELED":
		return domain.OrderStatusCancelled
	case "FAILED":
		return domain.OrderStatusFailed
	default:
		return domain.OrderStatus(strings.ToUpper(s))
	}
}

func (o blockOrder) toDomain(fallback domain.Market) (domain.Order, error) {
	order := domain.Order{ID: o.BlockOrderID, Market: fallback, Status: parseStatus(o.Status)}
	if o.Market != "" {
		m, err := domain.ParseMarket(o.Market)
		if err != nil {
			return order, err
		}
		order.Market = m
	}
	if o.Side != "" {
		side, err := domain.ParseSide(o.Side)
		if err != nil {
			return order, err
		}
		order.Side = side
	}
	var err error
	if o.Amount != "" {
		if order.Amount, err = decimal.NewFromString(o.Amount); err != nil {
			return order, errors.Wrapf(err, "order %s amount", o.BlockOrderID)
		}
	}
	if o.LimitPrice != "" {
		if order.Price, err = decimal.NewFromString(o.LimitPrice); err != nil {
			return order, errors.Wrapf(err, "order %s limit price", o.BlockOrderID)
		}
	}
	return order, nil
}

func orderPath(id string) string {
	return "/v1/block_orders/" + url.PathEscape(id)
}

// ListActiveOrders returns the block orders of market that are still ACTIVE.
func (c *Client) ListActiveOrders(ctx context.Context, market domain.Market) ([]domain.Order, error) {
	var resp listBlockOrdersResponse
	err := c.rest.Do(ctx, http.MethodGet, "/v1/block_orders",
		&restclient.RequestOptions{Params: map[string]string{"market": market.String()}}, &resp)
	if err != nil {
		return nil, gatewayErr("list_block_orders", err)
	}

	var out []domain.Order
	for _, bo := range resp.BlockOrders {
		if parseStatus(bo.Status) != domain.OrderStatusActive {
			continue
		}
		order, err := bo.toDomain(market)
		if err != nil {
			// the id is all a cancel needs
			ordersLog.Warnf("[%s] active order %s has unparseable fields: %v", market, bo.BlockOrderID, err)
			order = domain.Order{ID: bo.BlockOrderID, Market: market, Status: domain.OrderStatusActive}
		}
		out = append(out, order)
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.rest.Do(ctx, http.MethodDelete, orderPath(orderID), nil, nil); err != nil {
		return gatewayErr("cancel_block_order", err)
	}
	return nil
}

func (c *Client) PlaceOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal, tif domain.TimeInForce) (string, error) {
	req := createBlockOrderRequest{
		Market:      market.String(),
		Side:        side.String(),
		Amount:      amount.String(),
		LimitPrice:  price.String(),
		TimeInForce: string(tif),
	}
	var resp createBlockOrderResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v1/block_orders", &restclient.RequestOptions{Data: req}, &resp); err != nil {
		return "", gatewayErr("create_block_order", err)
	}
	if resp.BlockOrderID == "" {
		return "", gatewayErr("create_block_order", errors.New("response has no block_order_id"))
	}
	return resp.BlockOrderID, nil
}

// GetOrder reads a single block order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var resp blockOrder
	if err := c.rest.Do(ctx, http.MethodGet, orderPath(orderID), nil, &resp); err != nil {
		return domain.Order{}, gatewayErr("get_block_order", err)
	}
	if resp.BlockOrderID == "" {
		resp.BlockOrderID = orderID
	}
	order, err := resp.toDomain(domain.Market{})
	if err != nil {
		return domain.Order{}, gatewayErr("get_block_order", err)
	}
	return order, nil
}
