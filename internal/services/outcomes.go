package services

import (
	"sort"
	"sync"
	"time"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/metrics"
)

// SideStats 单个 market:side 的累计结果
type SideStats struct {
	Placed        int64     `json:"placed"`
	Suppressed    int64     `json:"suppressed"`
	Failed        int64     `json:"failed"`
	Hedged        int64     `json:"hedged"`
	HedgeFailures int64     `json:"hedge_failures"`
	LastOrderID   string    `json:"last_order_id,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketStats 单个市场的累计结果
type MarketStats struct {
	Market        string               `json:"market"`
	Cycles        int64                `json:"cycles"`
	CycleFailures int64                `json:"cycle_failures"`
	LastError     string               `json:"last_error,omitempty"`
	LastCycleAt   time.Time            `json:"last_cycle_at"`
	Sides         map[string]SideStats `json:"sides"`
}

// Outcomes records what each cycle did, for the status endpoint and logs.
// Nothing in the trading path reads it back. A nil *Outcomes discards everything.
type Outcomes struct {
	mu      sync.Mutex
	markets map[string]*MarketStats
	now     func() time.Time
}

func NewOutcomes() *Outcomes {
	return &Outcomes{markets: make(map[string]*MarketStats), now: time.Now}
}

func (o *Outcomes) market(m domain.Market) *MarketStats {
	st, ok := o.markets[m.String()]
	if !ok {
		st = &MarketStats{Market: m.String(), Sides: make(map[string]SideStats)}
		o.markets[m.String()] = st
	}
	return st
}

func (o *Outcomes) updateSide(m domain.Market, side domain.Side, fn func(*SideStats)) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.market(m)
	ss := st.Sides[side.String()]
	fn(&ss)
	ss.UpdatedAt = o.now()
	st.Sides[side.String()] = ss
}

// CycleStarted 记录一次周期开始
func (o *Outcomes) CycleStarted(m domain.Market) {
	metrics.Cycles.Add(1)
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.market(m)
	st.Cycles++
	st.LastCycleAt = o.now()
}

// CycleFailed 记录整个市场周期失败（行情或撤单列表失败）
func (o *Outcomes) CycleFailed(m domain.Market, err error) {
	metrics.CycleFailures.Add(1)
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.market(m)
	st.CycleFailures++
	if err != nil {
		st.LastError = err.Error()
	}
}

func (o *Outcomes) Placed(m domain.Market, side domain.Side, orderID string) {
	metrics.OrdersPlaced.Add(1)
	o.updateSide(m, side, func(s *SideStats) {
		s.Placed++
		s.LastOrderID = orderID
	})
}

func (o *Outcomes) Suppressed(m domain.Market, side domain.Side) {
	metrics.Suppressed.Add(1)
	o.updateSide(m, side, func(s *SideStats) { s.Suppressed++ })
}

func (o *Outcomes) SideFailed(m domain.Market, side domain.Side, err error) {
	metrics.SideFailures.Add(1)
	o.updateSide(m, side, func(s *SideStats) {
		s.Failed++
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

func (o *Outcomes) Hedged(m domain.Market, side domain.Side) {
	metrics.Hedges.Add(1)
	o.updateSide(m, side, func(s *SideStats) { s.Hedged++ })
}

func (o *Outcomes) HedgeFailed(m domain.Market, side domain.Side, err error) {
	metrics.HedgeFailures.Add(1)
	o.updateSide(m, side, func(s *SideStats) {
		s.HedgeFailures++
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

// Snapshot returns a copy of all stats ordered by market name.
func (o *Outcomes) Snapshot() []MarketStats {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]MarketStats, 0, len(o.markets))
	for _, st := range o.markets {
		cp := *st
		cp.Sides = make(map[string]SideStats, len(st.Sides))
		for k, v := range st.Sides {
			cp.Sides[k] = v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
