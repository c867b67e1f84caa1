package execution

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
	"github.com/sparkswap/sparkbot/pkg/logger"
	"github.com/sparkswap/sparkbot/pkg/syncgroup"
)

const (
	venue = "broker"

	// DefaultEventBuffer 每个订单事件通道的缓冲大小
	DefaultEventBuffer = 64
)

// ErrStreamEnded 事件流在终态之前就结束了
var ErrStreamEnded = errors.New("order event stream ended before a terminal status")

// CancelSummary 一次 CancelAll 的结果
type CancelSummary struct {
	Attempted int
	Cancelled int
	Failed    int
}

// Manager 管理主交易场所上挂单的生命周期：撤单、下单、监听成交。
// 每次网络调用都带 timeout，失败不重试。
type Manager struct {
	gateway     ports.OrderGateway
	timeout     time.Duration
	eventBuffer int
}

func NewManager(gateway ports.OrderGateway, timeout time.Duration) *Manager {
	return &Manager{gateway: gateway, timeout: timeout, eventBuffer: DefaultEventBuffer}
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// CancelAll cancels every ACTIVE order for market concurrently. Individual cancel failures are
// counted and logged; only a failed listing is returned as an error.
func (m *Manager) CancelAll(ctx context.Context, market domain.Market) (CancelSummary, error) {
	listCtx, cancel := m.callContext(ctx)
	orders, err := m.gateway.ListActiveOrders(listCtx, market)
	cancel()
	if err != nil {
		return CancelSummary{}, domain.NewGatewayError(venue, "list_active_orders", err)
	}

	var active []domain.Order
	for _, o := range orders {
		if o.Status == "" || o.Status == domain.OrderStatusActive {
			active = append(active, o)
		}
	}
	summary := CancelSummary{Attempted: len(active)}
	if len(active) == 0 {
		return summary, nil
	}

	log := logger.WithFields(logrus.Fields{"component": "execution", "market": market.String()})
	log.Infof("[%s] cancelling %d active orders", market, len(active))

	var cancelled int64
	sg := syncgroup.NewSyncGroup()
	for _, o := range active {
		id := o.ID
		sg.Go(id, func() error {
			cctx, cancel := m.callContext(ctx)
			defer cancel()
			if err := m.gateway.CancelOrder(cctx, id); err != nil {
				return domain.NewGatewayError(venue, "cancel_order", err)
			}
			atomic.AddInt64(&cancelled, 1)
			return nil
		})
	}
	for _, out := range sg.Wait() {
		if out.Err != nil {
			log.WithField("order_id", out.Name).Warnf("[%s] cancel failed: %v", market, out.Err)
		}
	}

	summary.Cancelled = int(cancelled)
	summary.Failed = summary.Attempted - summary.Cancelled
	return summary, nil
}

// Place submits a good-til-cancelled limit order and returns it as ACTIVE.
func (m *Manager) Place(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal) (*domain.Order, error) {
	if !side.IsValid() {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "side %q", side)
	}
	if !amount.IsPositive() {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "amount %s must be positive", amount)
	}
	if !price.IsPositive() {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "price %s must be positive", price)
	}

	pctx, cancel := m.callContext(ctx)
	defer cancel()
	id, err := m.gateway.PlaceOrder(pctx, market, side, price, amount, domain.TimeInForceGTC)
	if err != nil {
		return nil, domain.NewGatewayError(venue, "place_order", err)
	}

	return &domain.Order{
		ID:     id,
		Market: market,
		Side:   side,
		Price:  price,
		Amount: amount,
		Status: domain.OrderStatusActive,
	}, nil
}

// Watch streams order's fills in arrival order. The returned channel is closed after one terminal
// status event or one error event. Non-terminal status updates are not forwarded. The stream is
// bounded by ctx only; no per-call timeout applies.
func (m *Manager) Watch(ctx context.Context, order *domain.Order) <-chan domain.OrderEvent {
	buf := m.eventBuffer
	if buf <= 0 {
		buf = DefaultEventBuffer
	}
	out := make(chan domain.OrderEvent, buf)

	if order == nil || order.ID == "" {
		out <- domain.NewErrorEvent("", errors.Wrap(domain.ErrInvalidArgument, "watch: missing order id"))
		close(out)
		return out
	}

	stream, err := m.gateway.StreamOrderEvents(ctx, order.ID)
	if err != nil {
		out <- domain.NewErrorEvent(order.ID, domain.NewGatewayError(venue, "stream_order_events", err))
		close(out)
		return out
	}

	go pump(ctx, order, stream, out)
	return out
}

// PlaceAndWatch places the order and subscribes to its events.
func (m *Manager) PlaceAndWatch(ctx context.Context, market domain.Market, side domain.Side, price, amount decimal.Decimal) (*domain.Order, <-chan domain.OrderEvent, error) {
	order, err := m.Place(ctx, market, side, price, amount)
	if err != nil {
		return nil, nil, err
	}
	return order, m.Watch(ctx, order), nil
}

func pump(ctx context.Context, order *domain.Order, stream ports.OrderEventStream, out chan<- domain.OrderEvent) {
	defer close(out)

	var once sync.Once
	closeStream := func() { once.Do(func() { _ = stream.Close() }) }
	defer closeStream()

	// Recv does not take a context; closing the stream unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeStream()
		case <-stop:
		}
	}()

	log := logger.WithFields(logrus.Fields{
		"component": "execution",
		"market":    order.Market.String(),
		"side":      order.Side.String(),
		"order_id":  order.ID,
	})

	send := func(ev domain.OrderEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		ev := domain.NewErrorEvent(order.ID, domain.NewGatewayError(venue, "order_events", err))
		// best effort once ctx is gone
		select {
		case out <- ev:
		default:
			if ctx.Err() == nil {
				out <- ev
			}
		}
	}

	for {
		ev, err := stream.Recv()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				fail(ctx.Err())
			case errors.Is(err, io.EOF):
				fail(ErrStreamEnded)
			default:
				fail(err)
			}
			return
		}
		if ev.OrderID == "" {
			ev.OrderID = order.ID
		}

		switch ev.Kind {
		case domain.OrderEventFill:
			if !send(ev) {
				fail(ctx.Err())
				return
			}
		case domain.OrderEventStatus:
			if !ev.Status.IsTerminal() {
				log.Debugf("[%s:%s] order %s status %s", order.Market, order.Side, order.ID, ev.Status)
				continue
			}
			send(ev)
			return
		case domain.OrderEventError:
			if ev.Err == nil {
				ev.Err = errors.New("unspecified stream error")
			}
			ev.Err = domain.NewGatewayError(venue, "order_events", ev.Err)
			send(ev)
			return
		default:
			log.Warnf("[%s:%s] ignoring event of kind %s", order.Market, order.Side, ev.Kind)
		}
	}
}
