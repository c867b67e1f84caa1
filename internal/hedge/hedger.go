package hedge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
	"github.com/sparkswap/sparkbot/pkg/logger"
)

// Quoter returns margin-adjusted quotes fetched fresh on every call.
type Quoter interface {
	Quote(ctx context.Context, market domain.Market, margin decimal.Decimal) (domain.QuotePair, error)
}

// Hedger offsets every fill on the primary venue with an immediate order on the hedge venue.
// There is no netting, batching or inventory tracking: one fill, one attempt.
type Hedger struct {
	quotes     Quoter
	gateway    ports.HedgeGateway
	fillMargin decimal.Decimal
	timeout    time.Duration
}

func NewHedger(quotes Quoter, gateway ports.HedgeGateway, fillMargin decimal.Decimal, timeout time.Duration) *Hedger {
	return &Hedger{quotes: quotes, gateway: gateway, fillMargin: fillMargin, timeout: timeout}
}

// OnFill places the opposite side of fill on the hedge venue at the current quote moved by the fill
// margin. side is the side of the resting order that was filled.
//
// A hedge that does not settle in full is returned together with an error wrapping
// domain.ErrHedgeIncomplete. Nothing is retried or unwound.
func (h *Hedger) OnFill(ctx context.Context, market domain.Market, side domain.Side, fill domain.FillEvent) (domain.HedgeOrder, error) {
	if !side.IsValid() {
		return domain.HedgeOrder{}, errors.Wrapf(domain.ErrInvalidArgument, "side %q", side)
	}
	if !fill.Amount.IsPositive() {
		return domain.HedgeOrder{}, errors.Wrapf(domain.ErrInvalidArgument, "fill amount %s must be positive", fill.Amount)
	}

	hedgeSide := side.Inverse()
	fresh, err := h.quotes.Quote(ctx, market, h.fillMargin)
	if err != nil {
		return domain.HedgeOrder{}, errors.Wrapf(err, "quote %s for hedge", market)
	}

	order := domain.HedgeOrder{
		Market: market,
		Side:   hedgeSide,
		Price:  fresh.Point(hedgeSide).Price,
		Amount: fill.Amount,
	}

	log := logger.WithFields(logrus.Fields{"component": "hedge", "market": market.String(), "side": hedgeSide.String()})
	log.Infof("[%s:%s] hedging fill of %s @ %s: %s %s @ %s",
		market, side, fill.Amount.StringFixed(domain.AmountPrecision), fill.Price.StringFixed(domain.PricePrecision),
		hedgeSide, order.Amount.StringFixed(domain.AmountPrecision), order.Price.StringFixed(domain.PricePrecision))

	callCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	result, err := h.gateway.PlaceImmediateOrder(callCtx, market, hedgeSide, order.Price, order.Amount)
	if err != nil {
		return order, domain.NewGatewayError("exchange", "place_immediate_order", err)
	}
	order.Result = result

	if !result.Settled {
		return order, errors.Wrapf(domain.ErrHedgeIncomplete, "%s %s %s @ %s",
			market, hedgeSide, order.Amount.StringFixed(domain.AmountPrecision), order.Price.StringFixed(domain.PricePrecision))
	}

	log.Infof("[%s:%s] hedge settled: %s @ %s", market, hedgeSide,
		result.ExecutedAmount.StringFixed(domain.AmountPrecision), result.ExecutedPrice.StringFixed(domain.PricePrecision))
	return order, nil
}
