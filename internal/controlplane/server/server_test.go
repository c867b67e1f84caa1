package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/services"
)

func TestRouter_Healthz(t *testing.T) {
	s, err := New(Config{Addr: ":0"}, services.NewOutcomes())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Status(t *testing.T) {
	outcomes := services.NewOutcomes()
	m := domain.MustParseMarket("BTC/LTC")
	outcomes.CycleStarted(m)
	outcomes.Placed(m, domain.SideBid, "order-1")

	s, err := New(Config{Addr: ":0", Markets: []string{"BTC/LTC"}, DryRun: true}, outcomes)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.DryRun)
	assert.Equal(t, []string{"BTC/LTC"}, body.Markets)
	require.Len(t, body.Outcomes, 1)
	assert.EqualValues(t, 1, body.Outcomes[0].Cycles)
	assert.Equal(t, "order-1", body.Outcomes[0].Sides["BID"].LastOrderID)
}

func TestRouter_StatusEmpty(t *testing.T) {
	s, err := New(Config{Addr: ":0"}, services.NewOutcomes())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Contains(t, rec.Body.String(), `"outcomes":[]`)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, services.NewOutcomes())
	assert.Error(t, err)
	_, err = New(Config{Addr: ":0"}, nil)
	assert.Error(t, err)
}

func TestRouter_DebugVars(t *testing.T) {
	outcomes := services.NewOutcomes()
	outcomes.Hedged(domain.MustParseMarket("BTC/LTC"), domain.SideAsk)

	s, err := New(Config{Addr: ":0"}, outcomes)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var vars map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vars))
	assert.Contains(t, vars, "sparkbot_hedges")
	assert.Contains(t, vars, "sparkbot_cycles")
}
