package broker

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkswap/sparkbot/internal/domain"
)

var btcLtc = domain.MustParseMarket("BTC/LTC")

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type daemon struct {
	mu        sync.Mutex
	created   []createBlockOrderRequest
	cancelled []string
	events    []string // raw websocket messages
	closeCode int
	status    string
	listing   string // overrides the default block order listing
}

func (dm *daemon) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/block_orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "BTC/LTC", r.URL.Query().Get("market"))
			if dm.listing != "" {
				_, _ = io.WriteString(w, dm.listing)
				return
			}
			_, _ = io.WriteString(w, `{"block_orders":[
				{"block_order_id":"a","market":"BTC/LTC","side":"BID","amount":"1","limit_price":"95","status":"ACTIVE"},
				{"block_order_id":"b","market":"BTC/LTC","side":"ASK","amount":"1","limit_price":"115","status":"COMPLETED"},
				{"block_order_id":"c","market":"BTC/LTC","side":"ASK","amount":"0.5","limit_price":"115.5","status":"ACTIVE"}
			]}`)
		case http.MethodPost:
			var req createBlockOrderRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				return
			}
			dm.mu.Lock()
			dm.created = append(dm.created, req)
			dm.mu.Unlock()
			_, _ = io.WriteString(w, `{"block_order_id":"new-1"}`)
		}
	})
	mux.HandleFunc("/v1/block_orders/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/block_orders/")
		if strings.HasSuffix(rest, "/events") {
			conn, err := upgrader.Upgrade(w, r, nil)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			for _, msg := range dm.events {
				assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
			}
			if dm.closeCode != 0 {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(dm.closeCode, "bye"))
				time.Sleep(50 * time.Millisecond)
			}
			return
		}
		switch r.Method {
		case http.MethodDelete:
			if rest == "missing" {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			dm.mu.Lock()
			dm.cancelled = append(dm.cancelled, rest)
			dm.mu.Unlock()
			_, _ = io.WriteString(w, `{}`)
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"block_order_id":"`+rest+`","market":"BTC/LTC","side":"BID","amount":"3","limit_price":"95","status":"`+dm.status+`"}`)
		}
	})
	mux.HandleFunc("/v1/wallet/trading_capacities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"base_symbol_capacities":{"symbol":"BTC","available_send_capacity":"1.5","available_receive_capacity":"2"},
			"counter_symbol_capacities":{"symbol":"LTC","available_send_capacity":"50"}
		}`)
	})
	return mux
}

func newPlainClient(t *testing.T, dm *daemon) *Client {
	t.Helper()
	srv := httptest.NewServer(dm.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(Config{Address: strings.TrimPrefix(srv.URL, "http://"), DisableAuth: true, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestListActiveOrders(t *testing.T) {
	c := newPlainClient(t, &daemon{})
	orders, err := c.ListActiveOrders(context.Background(), btcLtc)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID)
	assert.Equal(t, domain.SideBid, orders[0].Side)
	assert.True(t, orders[0].Price.Equal(d("95")))
	assert.Equal(t, "c", orders[1].ID)
	assert.Equal(t, domain.OrderStatusActive, orders[1].Status)
}

func TestListActiveOrders_UnparseableOrders(t *testing.T) {
	dm := &daemon{listing: `{"block_orders":[
		{"block_order_id":"old","market":"BTC/LTC","side":"ASK","amount":"1","limit_price":"MARKET","status":"COMPLETED"},
		{"block_order_id":"live","market":"BTC/LTC","side":"BID","amount":"1","limit_price":"95","status":"ACTIVE"},
		{"block_order_id":"odd","market":"BTC/LTC","side":"BID","amount":"1","limit_price":"MARKET","status":"ACTIVE"}
	]}`}
	c := newPlainClient(t, dm)

	orders, err := c.ListActiveOrders(context.Background(), btcLtc)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "live", orders[0].ID)
	assert.True(t, orders[0].Price.Equal(d("95")))
	// still listed so the cycle can cancel it
	assert.Equal(t, "odd", orders[1].ID)
	assert.Equal(t, btcLtc, orders[1].Market)
	assert.Equal(t, domain.OrderStatusActive, orders[1].Status)
}

func TestPlaceAndCancelOrder(t *testing.T) {
	dm := &daemon{}
	c := newPlainClient(t, dm)

	id, err := c.PlaceOrder(context.Background(), btcLtc, domain.SideAsk, d("115.5"), d("0.25"), domain.TimeInForceGTC)
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)
	require.Len(t, dm.created, 1)
	assert.Equal(t, createBlockOrderRequest{
		Market: "BTC/LTC", Side: "ASK", Amount: "0.25", LimitPrice: "115.5", TimeInForce: "GTC",
	}, dm.created[0])

	require.NoError(t, c.CancelOrder(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, dm.cancelled)

	err = c.CancelOrder(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
}

func TestGetCapacity(t *testing.T) {
	c := newPlainClient(t, &daemon{})
	snap, err := c.GetCapacity(context.Background(), btcLtc)
	require.NoError(t, err)
	assert.True(t, snap.BaseAvailableSend.Equal(d("1.5")))
	assert.True(t, snap.BaseAvailableReceive.Equal(d("2")))
	assert.True(t, snap.CounterAvailableSend.Equal(d("50")))
	assert.True(t, snap.CounterAvailableReceive.IsZero())
}

func TestStreamOrderEvents(t *testing.T) {
	dm := &daemon{
		events: []string{
			`{"type":"fill","amount":"1.5","price":"95"}`,
			`{"type":"heartbeat"}`,
			`{"type":"status","status":"ACTIVE"}`,
			`{"type":"fill","amount":"1.5","price":"95"}`,
			`{"type":"status","status":"COMPLETED"}`,
		},
		closeCode: websocket.CloseNormalClosure,
		status:    "COMPLETED",
	}
	c := newPlainClient(t, dm)

	stream, err := c.StreamOrderEvents(context.Background(), "o1")
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderEventFill, ev.Kind)
	assert.Equal(t, "o1", ev.OrderID)
	assert.True(t, ev.Fill.Amount.Equal(d("1.5")))

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderEventStatus, ev.Kind)
	assert.Equal(t, domain.OrderStatusActive, ev.Status)

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderEventFill, ev.Kind)

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusComplete, ev.Status)

	// clean close resolves the status once more
	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusComplete, ev.Status)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamOrderEvents_CleanCloseWhileActive(t *testing.T) {
	dm := &daemon{closeCode: websocket.CloseNormalClosure, status: "ACTIVE"}
	c := newPlainClient(t, dm)

	stream, err := c.StreamOrderEvents(context.Background(), "o1")
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamOrderEvents_AbnormalClose(t *testing.T) {
	dm := &daemon{closeCode: websocket.CloseInternalServerErr}
	c := newPlainClient(t, dm)

	stream, err := c.StreamOrderEvents(context.Background(), "o1")
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF))
}

func TestStreamOrderEvents_DialFailure(t *testing.T) {
	c, err := New(Config{Address: "127.0.0.1:1", DisableAuth: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.StreamOrderEvents(ctx, "o1")
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
}

func TestNew_TLSWithPinnedCertAndBasicAuth(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sparkswap" || pass != "passwd" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"block_orders":[]}`)
	}))
	defer srv.Close()

	certPath := filepath.Join(t.TempDir(), "broker-rpc-tls.cert")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(certPath, pemBytes, 0o600))

	c, err := New(Config{
		Address:  strings.TrimPrefix(srv.URL, "https://"),
		CertPath: certPath,
		User:     "sparkswap",
		Pass:     "passwd",
	})
	require.NoError(t, err)

	orders, err := c.ListActiveOrders(context.Background(), btcLtc)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Config{Address: "localhost:27492", CertPath: "/does/not/exist", User: "u", Pass: "p"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	bad := filepath.Join(t.TempDir(), "bad.cert")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = New(Config{Address: "localhost:27492", CertPath: bad, User: "u", Pass: "p"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Config{Address: "localhost:27492", CertPath: bad})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, domain.OrderStatusComplete, parseStatus("completed"))
	assert.Equal(t, domain.OrderStatusCancelled, parseStatus("CANCELED"))
	assert.Equal(t, domain.OrderStatusFailed, parseStatus("FAILED"))
	assert.False(t, parseStatus("PENDING").IsTerminal())
}
