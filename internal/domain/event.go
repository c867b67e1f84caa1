package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FillEvent 挂单的一次（部分）成交
type FillEvent struct {
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// OrderEventKind 订单事件类型
type OrderEventKind int

const (
	OrderEventFill OrderEventKind = iota
	OrderEventStatus
	OrderEventError
)

func (k OrderEventKind) String() string {
	switch k {
	case OrderEventFill:
		return "fill"
	case OrderEventStatus:
		return "status"
	case OrderEventError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// OrderEvent is one item of an order's event stream. Exactly one of Fill, Status or Err is meaningful,
// selected by Kind.
type OrderEvent struct {
	OrderID string
	Kind    OrderEventKind
	Fill    FillEvent
	Status  OrderStatus
	Err     error
}

func NewFillEvent(orderID string, fill FillEvent) OrderEvent {
	return OrderEvent{OrderID: orderID, Kind: OrderEventFill, Fill: fill}
}

func NewStatusEvent(orderID string, status OrderStatus) OrderEvent {
	return OrderEvent{OrderID: orderID, Kind: OrderEventStatus, Status: status}
}

func NewErrorEvent(orderID string, err error) OrderEvent {
	return OrderEvent{OrderID: orderID, Kind: OrderEventError, Err: err}
}

// IsTerminal reports whether the event ends the stream.
func (e OrderEvent) IsTerminal() bool {
	switch e.Kind {
	case OrderEventError:
		return true
	case OrderEventStatus:
		return e.Status.IsTerminal()
	default:
		return false
	}
}
