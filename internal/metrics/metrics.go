package metrics

import (
	"expvar"
	"net/http"
)

// 进程级计数器，通过 /debug/vars 暴露
var (
	Cycles        = expvar.NewInt("sparkbot_cycles")
	CycleFailures = expvar.NewInt("sparkbot_cycle_failures")
	OrdersPlaced  = expvar.NewInt("sparkbot_orders_placed")
	Suppressed    = expvar.NewInt("sparkbot_sides_suppressed")
	SideFailures  = expvar.NewInt("sparkbot_side_failures")
	Hedges        = expvar.NewInt("sparkbot_hedges")
	HedgeFailures = expvar.NewInt("sparkbot_hedge_failures")
)

// Handler serves every published expvar as JSON.
func Handler() http.Handler {
	return expvar.Handler()
}
