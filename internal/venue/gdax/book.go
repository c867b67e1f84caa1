package gdax

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

var one = decimal.NewFromInt(1)

// bookLevel is [price, size, num_orders]; the exchange sends the first two as strings.
type bookLevel []interface{}

type bookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

func errUnsupportedMarket(market domain.Market, products map[string]Product) error {
	names := make([]string, 0, len(products))
	for k := range products {
		names = append(names, k)
	}
	sort.Strings(names)
	return errors.Errorf("%s is not supported, only %s", market, strings.Join(names, ", "))
}

func (l bookLevel) point() (domain.QuotePoint, error) {
	if len(l) < 2 {
		return domain.QuotePoint{}, errors.New("short book level")
	}
	price, err := decimal.NewFromString(fmt.Sprint(l[0]))
	if err != nil {
		return domain.QuotePoint{}, errors.Wrap(err, "book price")
	}
	size, err := decimal.NewFromString(fmt.Sprint(l[1]))
	if err != nil {
		return domain.QuotePoint{}, errors.Wrap(err, "book size")
	}
	return domain.QuotePoint{Price: price, Amount: size}, nil
}

// toMarket converts a product level into market terms. For an inverted product the price is
// inverted and the size is re-expressed in the market's base asset.
func toMarket(p domain.QuotePoint, inverted bool) domain.QuotePoint {
	if !inverted {
		return domain.QuotePoint{
			Price:  p.Price.Truncate(domain.PricePrecision),
			Amount: p.Amount.Truncate(domain.AmountPrecision),
		}
	}
	return domain.QuotePoint{
		Price:  one.DivRound(p.Price, 16).Truncate(domain.PricePrecision),
		Amount: p.Amount.Mul(p.Price).Truncate(domain.AmountPrecision),
	}
}

// ConvertBook turns the product's top of book into market quotes. On an inverted product a product
// bid is an offer to sell the market base, so bid and ask swap.
func ConvertBook(bid, ask domain.QuotePoint, inverted bool) domain.QuotePair {
	if inverted {
		return domain.QuotePair{Bid: toMarket(ask, true), Ask: toMarket(bid, true)}
	}
	return domain.QuotePair{Bid: toMarket(bid, false), Ask: toMarket(ask, false)}
}

// GetQuotes reads the level-1 book of market's product.
func (c *Client) GetQuotes(ctx context.Context, market domain.Market) (domain.QuotePair, error) {
	product, err := c.product(market)
	if err != nil {
		return domain.QuotePair{}, err
	}

	var book bookResponse
	path := "/products/" + url.PathEscape(product.ID) + "/book"
	err = c.rest.Do(ctx, http.MethodGet, path, &restclient.RequestOptions{Params: map[string]string{"level": "1"}}, &book)
	if err != nil {
		return domain.QuotePair{}, domain.NewGatewayError(venue, "get_book", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return domain.QuotePair{}, domain.NewGatewayError(venue, "get_book", errors.Errorf("%s book is empty", product.ID))
	}

	bid, err := book.Bids[0].point()
	if err != nil {
		return domain.QuotePair{}, domain.NewGatewayError(venue, "get_book", err)
	}
	ask, err := book.Asks[0].point()
	if err != nil {
		return domain.QuotePair{}, domain.NewGatewayError(venue, "get_book", err)
	}
	if !bid.Price.IsPositive() || !ask.Price.IsPositive() {
		return domain.QuotePair{}, domain.NewGatewayError(venue, "get_book", errors.Errorf("%s book has a non-positive price", product.ID))
	}
	return ConvertBook(bid, ask, product.Inverted), nil
}
