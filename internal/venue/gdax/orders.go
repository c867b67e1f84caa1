package gdax

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

var ordersLog = logrus.WithField("component", "gdax_orders")

type orderRequest struct {
	ClientOID   string `json:"client_oid"`
	Type        string `json:"type"`
	Side        string `json:"side"`
	ProductID   string `json:"product_id"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	DoneReason    string `json:"done_reason"`
	FilledSize    string `json:"filled_size"`
	ExecutedValue string `json:"executed_value"`
	RejectReason  string `json:"reject_reason"`
}

func (o orderResponse) settled() bool {
	return o.Status == "done" && o.DoneReason == "filled"
}

func (o orderResponse) final() bool {
	return o.Status == "done" || o.Status == "rejected"
}

// productOrder is an order expressed in the product's own terms.
type productOrder struct {
	side  string
	price decimal.Decimal
	size  decimal.Decimal
}

// toProduct converts a market order into product terms. On an inverted product buying the market
// base means selling the product base, the price inverts and the size becomes amount × price.
func toProduct(side domain.Side, price, amount decimal.Decimal, inverted bool) productOrder {
	buy := side == domain.SideBid
	if !inverted {
		po := productOrder{side: "sell", price: price.Truncate(domain.PricePrecision), size: amount.Truncate(domain.AmountPrecision)}
		if buy {
			po.side = "buy"
		}
		return po
	}
	po := productOrder{
		side:  "buy",
		price: one.DivRound(price, 16).Truncate(domain.PricePrecision),
		size:  amount.Mul(price).Truncate(domain.AmountPrecision),
	}
	if buy {
		po.side = "sell"
	}
	return po
}

// executedInMarket converts the filled size and executed value (product quote currency) back into
// market amount and average price.
func executedInMarket(filledSize, executedValue decimal.Decimal, inverted bool) (price, amount decimal.Decimal) {
	if !filledSize.IsPositive() || !executedValue.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	if !inverted {
		return executedValue.DivRound(filledSize, domain.PricePrecision), filledSize
	}
	return filledSize.DivRound(executedValue, domain.PricePrecision), executedValue
}

func parseOptional(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PlaceImmediateOrder posts a fill-or-kill limit order. The order counts as settled only once the
// exchange reports it done with reason filled.
func (c *Client) PlaceImmediateOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal) (domain.HedgeResult, error) {
	if !side.IsValid() {
		return domain.HedgeResult{}, errors.Wrapf(domain.ErrInvalidArgument, "side %q", side)
	}
	if !price.IsPositive() || !amount.IsPositive() {
		return domain.HedgeResult{}, errors.Wrapf(domain.ErrInvalidArgument, "price %s amount %s", price, amount)
	}
	if !c.hasCredentials() {
		return domain.HedgeResult{}, domain.NewGatewayError(venue, "place_order", errors.New("no api credentials configured"))
	}
	product, err := c.product(market)
	if err != nil {
		return domain.HedgeResult{}, err
	}

	po := toProduct(side, price, amount, product.Inverted)
	req := orderRequest{
		ClientOID:   c.newID(),
		Type:        "limit",
		Side:        po.side,
		ProductID:   product.ID,
		Price:       po.price.String(),
		Size:        po.size.String(),
		TimeInForce: "FOK",
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.HedgeResult{}, domain.NewGatewayError(venue, "place_order", err)
	}

	var resp orderResponse
	err = c.rest.Do(ctx, http.MethodPost, "/orders", &restclient.RequestOptions{
		Headers: c.authHeaders(http.MethodPost, "/orders", string(body)),
		Data:    body,
	}, &resp)
	if err != nil {
		return domain.HedgeResult{}, domain.NewGatewayError(venue, "place_order", err)
	}
	ordersLog.Debugf("%s %s %s @ %s: %s %s", product.ID, po.side, po.size, po.price, resp.ID, resp.Status)

	if !resp.final() && resp.ID != "" {
		pending := resp.ID
		if resp, err = c.getOrder(ctx, pending); err != nil {
			// killed FOK orders are purged by the exchange
			if restclient.IsStatus(err, http.StatusNotFound) {
				ordersLog.Infof("order %s no longer exists, treating as not filled", pending)
				return domain.HedgeResult{}, nil
			}
			return domain.HedgeResult{}, err
		}
	}
	if resp.Status == "rejected" {
		ordersLog.Warnf("%s order rejected: %s", product.ID, resp.RejectReason)
	}

	execPrice, execAmount := executedInMarket(parseOptional(resp.FilledSize), parseOptional(resp.ExecutedValue), product.Inverted)
	return domain.HedgeResult{
		Settled:        resp.settled(),
		ExecutedPrice:  execPrice,
		ExecutedAmount: execAmount,
	}, nil
}

func (c *Client) getOrder(ctx context.Context, id string) (orderResponse, error) {
	path := "/orders/" + url.PathEscape(id)
	var resp orderResponse
	err := c.rest.Do(ctx, http.MethodGet, path, &restclient.RequestOptions{
		Headers: c.authHeaders(http.MethodGet, path, ""),
	}, &resp)
	if err != nil {
		return orderResponse{}, domain.NewGatewayError(venue, "get_order", err)
	}
	return resp, nil
}
