package broker

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

type symbolCapacities struct {
	Symbol                   string `json:"symbol"`
	AvailableSendCapacity    string `json:"available_send_capacity"`
	AvailableReceiveCapacity string `json:"available_receive_capacity"`
}

type tradingCapacitiesResponse struct {
	BaseSymbolCapacities    symbolCapacities `json:"base_symbol_capacities"`
	CounterSymbolCapacities symbolCapacities `json:"counter_symbol_capacities"`
}

// amount parses a capacity; the daemon omits zero values.
func amount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// GetCapacity reads the channel capacities available for market.
func (c *Client) GetCapacity(ctx context.Context, market domain.Market) (domain.CapacitySnapshot, error) {
	var resp tradingCapacitiesResponse
	err := c.rest.Do(ctx, http.MethodGet, "/v1/wallet/trading_capacities",
		&restclient.RequestOptions{Params: map[string]string{"market": market.String()}}, &resp)
	if err != nil {
		return domain.CapacitySnapshot{}, gatewayErr("get_trading_capacities", err)
	}

	var snap domain.CapacitySnapshot
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{resp.BaseSymbolCapacities.AvailableSendCapacity, &snap.BaseAvailableSend},
		{resp.BaseSymbolCapacities.AvailableReceiveCapacity, &snap.BaseAvailableReceive},
		{resp.CounterSymbolCapacities.AvailableSendCapacity, &snap.CounterAvailableSend},
		{resp.CounterSymbolCapacities.AvailableReceiveCapacity, &snap.CounterAvailableReceive},
	}
	for _, f := range fields {
		v, err := amount(f.raw)
		if err != nil {
			return domain.CapacitySnapshot{}, gatewayErr("get_trading_capacities", err)
		}
		*f.dst = v
	}
	return snap, nil
}
