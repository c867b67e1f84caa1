package domain

import (
	"github.com/shopspring/decimal"
)

// Order 主交易场所上的挂单
type Order struct {
	ID     string
	Market Market
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
	Status OrderStatus
}

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusComplete || s == OrderStatusCancelled || s == OrderStatusFailed
}

// IsActive 检查订单是否仍在挂单中
func (o *Order) IsActive() bool {
	return o != nil && o.Status == OrderStatusActive
}

// TimeInForce 订单有效期
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // 挂单直到取消
	TimeInForceFOK TimeInForce = "FOK" // 全部成交或取消
)
