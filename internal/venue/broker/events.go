package broker

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/ports"
)

var eventsLog = logrus.WithField("component", "broker_events")

// resolveTimeout bounds the status lookup made when the daemon closes a stream cleanly.
const resolveTimeout = 5 * time.Second

type wireEvent struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type eventStream struct {
	ctx     context.Context
	client  *Client
	conn    *websocket.Conn
	orderID string
	ended   bool
	once    sync.Once
}

// StreamOrderEvents subscribes to fills and status changes of a block order over a websocket.
func (c *Client) StreamOrderEvents(ctx context.Context, orderID string) (ports.OrderEventStream, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsBase+orderPath(orderID)+"/events", c.header)
	if err != nil {
		if resp != nil {
			err = errors.Wrapf(err, "handshake status %d", resp.StatusCode)
		}
		return nil, gatewayErr("stream_order_events", err)
	}
	return &eventStream{ctx: ctx, client: c, conn: conn, orderID: orderID}, nil
}

// Recv returns the next fill or status change. When the daemon closes the socket normally the
// order is read once more so a final status is not lost; after that Recv returns io.EOF.
func (s *eventStream) Recv() (domain.OrderEvent, error) {
	for {
		if s.ended {
			return domain.OrderEvent{}, io.EOF
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.ended = true
				return s.resolve()
			}
			return domain.OrderEvent{}, err
		}

		var we wireEvent
		if err := json.Unmarshal(msg, &we); err != nil {
			return domain.OrderEvent{}, errors.Wrap(err, "decode order event")
		}

		switch strings.ToLower(we.Type) {
		case "fill":
			amt, err := decimal.NewFromString(we.Amount)
			if err != nil {
				return domain.OrderEvent{}, errors.Wrapf(err, "fill amount %q", we.Amount)
			}
			price, err := decimal.NewFromString(we.Price)
			if err != nil {
				return domain.OrderEvent{}, errors.Wrapf(err, "fill price %q", we.Price)
			}
			return domain.NewFillEvent(s.orderID, domain.FillEvent{Amount: amt, Price: price}), nil
		case "status":
			return domain.NewStatusEvent(s.orderID, parseStatus(we.Status)), nil
		case "error":
			return domain.NewErrorEvent(s.orderID, errors.New(we.Error)), nil
		default:
			eventsLog.Debugf("order %s: skipping event type %q", s.orderID, we.Type)
		}
	}
}

func (s *eventStream) resolve() (domain.OrderEvent, error) {
	ctx, cancel := context.WithTimeout(s.ctx, resolveTimeout)
	defer cancel()
	order, err := s.client.GetOrder(ctx, s.orderID)
	if err != nil {
		eventsLog.Warnf("order %s: stream closed and status lookup failed: %v", s.orderID, err)
		return domain.OrderEvent{}, io.EOF
	}
	if order.Status.IsTerminal() {
		return domain.NewStatusEvent(s.orderID, order.Status), nil
	}
	return domain.OrderEvent{}, io.EOF
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}
