package paper

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
)

var paperLog = logrus.WithField("component", "paper")

// OrderBook 纸交易模式下的主交易场所：订单只存在内存里，从不成交。
// 撤单会在该订单的事件流上推送 CANCELLED。
type OrderBook struct {
	mu     sync.Mutex
	orders map[string]*paperOrder
	newID  func() string
}

type paperOrder struct {
	order  domain.Order
	events chan domain.OrderEvent
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders: make(map[string]*paperOrder),
		newID:  func() string { return "paper-" + uuid.New().String() },
	}
}

func (b *OrderBook) ListActiveOrders(ctx context.Context, market domain.Market) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Order
	for _, po := range b.orders {
		if po.order.Market == market && po.order.Status == domain.OrderStatusActive {
			out = append(out, po.order)
		}
	}
	return out, nil
}

func (b *OrderBook) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	po, ok := b.orders[orderID]
	if !ok {
		return errors.Errorf("order %s not found", orderID)
	}
	if po.order.Status != domain.OrderStatusActive {
		return nil
	}
	po.order.Status = domain.OrderStatusCancelled
	po.events <- domain.NewStatusEvent(orderID, domain.OrderStatusCancelled)
	close(po.events)
	delete(b.orders, orderID)
	paperLog.Infof("[paper] cancelled %s", orderID)
	return nil
}

func (b *OrderBook) PlaceOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal, tif domain.TimeInForce) (string, error) {
	id := b.newID()
	b.mu.Lock()
	b.orders[id] = &paperOrder{
		order: domain.Order{
			ID:     id,
			Market: market,
			Side:   side,
			Price:  price,
			Amount: amount,
			Status: domain.OrderStatusActive,
		},
		events: make(chan domain.OrderEvent, 1),
	}
	b.mu.Unlock()

	paperLog.WithFields(logrus.Fields{"market": market.String(), "side": side.String()}).
		Infof("[paper] %s %s %s @ %s (%s)", id, side, amount.StringFixed(domain.AmountPrecision), price.StringFixed(domain.PricePrecision), tif)
	return id, nil
}

func (b *OrderBook) StreamOrderEvents(ctx context.Context, orderID string) (ports.OrderEventStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	po, ok := b.orders[orderID]
	if !ok {
		return nil, errors.Errorf("order %s not found", orderID)
	}
	return &stream{events: po.events, done: make(chan struct{})}, nil
}

type stream struct {
	events <-chan domain.OrderEvent
	done   chan struct{}
	once   sync.Once
}

func (s *stream) Recv() (domain.OrderEvent, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return domain.OrderEvent{}, io.EOF
		}
		return ev, nil
	case <-s.done:
		return domain.OrderEvent{}, errors.New("stream closed")
	}
}

func (s *stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Hedger 纸交易模式下的对冲场所：按请求价格全部成交，只记录日志
type Hedger struct{}

func NewHedger() *Hedger {
	return &Hedger{}
}

func (h *Hedger) PlaceImmediateOrder(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal) (domain.HedgeResult, error) {
	paperLog.WithFields(logrus.Fields{"market": market.String(), "side": side.String()}).
		Infof("[paper] hedge %s %s @ %s", side, amount.StringFixed(domain.AmountPrecision), price.StringFixed(domain.PricePrecision))
	return domain.HedgeResult{Settled: true, ExecutedPrice: price, ExecutedAmount: amount}, nil
}
