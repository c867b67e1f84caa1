package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
)

var one = decimal.NewFromInt(1)

// DeriveQuotes moves the raw top of book away from the market by margin:
// bid = rawBid × (1 − margin), ask = rawAsk × (1 + margin). Amounts pass through.
//
// Prices are truncated toward zero so a quote never looks better than it is. Margin is not
// validated; values outside [0, 1) are the caller's problem.
func DeriveQuotes(raw domain.QuotePair, margin decimal.Decimal) domain.QuotePair {
	return domain.QuotePair{
		Bid: domain.QuotePoint{
			Price:  raw.Bid.Price.Mul(one.Sub(margin)).Truncate(domain.PricePrecision),
			Amount: raw.Bid.Amount,
		},
		Ask: domain.QuotePoint{
			Price:  raw.Ask.Price.Mul(one.Add(margin)).Truncate(domain.PricePrecision),
			Amount: raw.Ask.Amount,
		},
	}
}

// Engine 从对冲场所拉取行情并应用 margin
type Engine struct {
	source  ports.QuoteSource
	timeout time.Duration
}

// NewEngine creates a quote engine. A zero timeout leaves the caller's deadline untouched.
func NewEngine(source ports.QuoteSource, timeout time.Duration) *Engine {
	return &Engine{source: source, timeout: timeout}
}

// Quote fetches fresh raw quotes for market and applies margin. Nothing is cached between calls.
func (e *Engine) Quote(ctx context.Context, market domain.Market, margin decimal.Decimal) (domain.QuotePair, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	raw, err := e.source.GetQuotes(ctx, market)
	if err != nil {
		return domain.QuotePair{}, domain.NewGatewayError("quotes", "get_quotes", err)
	}
	return DeriveQuotes(raw, margin), nil
}
