package domain

import (
	"github.com/shopspring/decimal"
)

// HedgeResult 对冲场所返回的即时单执行结果
type HedgeResult struct {
	Settled        bool
	ExecutedPrice  decimal.Decimal
	ExecutedAmount decimal.Decimal
}

// HedgeOrder 针对一次成交下的对冲单
type HedgeOrder struct {
	Market Market
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
	Result HedgeResult
}
