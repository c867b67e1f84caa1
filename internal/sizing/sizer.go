package sizing

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
)

// RoutingFeeHaircut is the share of send capacity held back for fees paid when funds are routed.
var RoutingFeeHaircut = decimal.RequireFromString("0.01")

// Bound names the term that decided an order size.
type Bound string

const (
	BoundCapacity Bound = "capacity" // 通道容量
	BoundGlobal   Bound = "global"   // 全局最大下单量
	BoundMarket   Bound = "market"   // 盘口数量
)

// Limits 全局下单量限制
type Limits struct {
	GlobalMax decimal.Decimal
	GlobalMin decimal.Decimal
}

// Decision is the outcome of sizing one side. A suppressed decision means "too small to place this
// cycle"; it is not an error.
type Decision struct {
	Amount      decimal.Decimal
	CapacityMax decimal.Decimal
	Bound       Bound
	Suppressed  bool
}

// MaxOrderSize returns the capacity ceiling for side at price, in base units.
//
// BID receives base and sends counter; ASK sends base and receives counter. Counter legs are
// converted with price, and the send leg keeps RoutingFeeHaircut in reserve.
func MaxOrderSize(side domain.Side, price decimal.Decimal, capacity domain.CapacitySnapshot) (decimal.Decimal, error) {
	if !side.IsValid() {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidArgument, "side %q", side)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidArgument, "price %s must be positive", price)
	}

	var receive, send decimal.Decimal
	if side == domain.SideBid {
		receive = capacity.BaseAvailableReceive
		send = capacity.CounterAvailableSend.Div(price)
	} else {
		receive = capacity.CounterAvailableReceive.Div(price)
		send = capacity.BaseAvailableSend
	}
	send = send.Mul(decimal.NewFromInt(1).Sub(RoutingFeeHaircut))

	// NOTE: the larger leg is returned as the ceiling. The smaller leg is the one that actually binds
	// settlement, so this is most likely a defect carried over from the broker client; it is kept as
	// is until the venue behaviour is confirmed.
	return decimal.Max(send, receive), nil
}

// ComputeOrderSize sizes an order as min(capacity ceiling, global max, quote amount), truncated to
// domain.AmountPrecision. Sizes at or below the global minimum are suppressed.
func ComputeOrderSize(side domain.Side, price, quoteAmount decimal.Decimal, capacity domain.CapacitySnapshot, limits Limits) (Decision, error) {
	capacityMax, err := MaxOrderSize(side, price, capacity)
	if err != nil {
		return Decision{}, err
	}

	dec := Decision{CapacityMax: capacityMax}
	switch {
	case capacityMax.GreaterThan(limits.GlobalMax) && quoteAmount.GreaterThan(limits.GlobalMax):
		dec.Amount, dec.Bound = limits.GlobalMax, BoundGlobal
	case quoteAmount.GreaterThan(capacityMax):
		dec.Amount, dec.Bound = capacityMax, BoundCapacity
	default:
		dec.Amount, dec.Bound = quoteAmount, BoundMarket
	}

	dec.Amount = dec.Amount.Truncate(domain.AmountPrecision)
	if dec.Amount.LessThanOrEqual(limits.GlobalMin) || !dec.Amount.IsPositive() {
		dec.Suppressed = true
	}
	return dec, nil
}

// Sizer 每次下单前拉取最新容量快照再计算下单量
type Sizer struct {
	capacity ports.CapacitySource
	limits   Limits
	timeout  time.Duration
}

func NewSizer(capacity ports.CapacitySource, limits Limits, timeout time.Duration) *Sizer {
	return &Sizer{capacity: capacity, limits: limits, timeout: timeout}
}

// Limits returns the configured global limits.
func (s *Sizer) Limits() Limits {
	return s.limits
}

// Size fetches a fresh capacity snapshot and sizes an order for side at price.
func (s *Sizer) Size(ctx context.Context, market domain.Market, side domain.Side, price, quoteAmount decimal.Decimal) (Decision, error) {
	if !side.IsValid() {
		return Decision{}, errors.Wrapf(domain.ErrInvalidArgument, "side %q", side)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	capacity, err := s.capacity.GetCapacity(ctx, market)
	if err != nil {
		return Decision{}, domain.NewGatewayError("capacity", "get_capacity", err)
	}
	return ComputeOrderSize(side, price, quoteAmount, capacity, s.limits)
}
