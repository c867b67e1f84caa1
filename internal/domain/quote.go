package domain

import (
	"github.com/shopspring/decimal"
)

const (
	// PricePrecision 价格小数位（向零截断）
	PricePrecision int32 = 8
	// AmountPrecision 数量小数位（向零截断）
	AmountPrecision int32 = 8
)

// QuotePoint 盘口一侧的价格和数量
type QuotePoint struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// QuotePair 某一时刻的买一/卖一快照
type QuotePair struct {
	Bid QuotePoint
	Ask QuotePoint
}

// Point returns the quote for side. Callers must pass a valid side.
func (q QuotePair) Point(side Side) QuotePoint {
	if side == SideAsk {
		return q.Ask
	}
	return q.Bid
}

// CapacitySnapshot 主交易场所上某市场可用的收发容量
type CapacitySnapshot struct {
	BaseAvailableSend       decimal.Decimal
	BaseAvailableReceive    decimal.Decimal
	CounterAvailableSend    decimal.Decimal
	CounterAvailableReceive decimal.Decimal
}
