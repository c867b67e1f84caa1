package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sparkswap/sparkbot/internal/domain"
)

// Small capability interfaces consumed by the trading core. Adapters live under internal/venue.
//
// NOTE: every call is expected to honour ctx cancellation and deadline; the core never retries.

// QuoteSource supplies top-of-book quotes for a market from the hedge venue.
type QuoteSource interface {
	GetQuotes(ctx context.Context, market domain.Market) (domain.QuotePair, error)
}

// CapacitySource supplies the primary venue's available send/receive capacity for a market.
type CapacitySource interface {
	GetCapacity(ctx context.Context, market domain.Market) (domain.CapacitySnapshot, error)
}

// OrderEventStream yields fills and status updates for a single order.
// Recv returns io.EOF once the remote end has closed the stream.
type OrderEventStream interface {
	Recv() (domain.OrderEvent, error)
	Close() error
}

// OrderGateway places, cancels, lists and streams resting orders on the primary venue.
type OrderGateway interface {
	ListActiveOrders(ctx context.Context, market domain.Market) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	PlaceOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal, tif domain.TimeInForce) (string, error)
	StreamOrderEvents(ctx context.Context, orderID string) (OrderEventStream, error)
}

// HedgeGateway places immediate (fill-or-kill) orders on the hedge venue.
type HedgeGateway interface {
	PlaceImmediateOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal) (domain.HedgeResult, error)
}
