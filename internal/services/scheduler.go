package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/internal/execution"
	"github.com/sparkswap/sparkbot/internal/hedge"
	"github.com/sparkswap/sparkbot/internal/quote"
	"github.com/sparkswap/sparkbot/internal/sizing"
	"github.com/sparkswap/sparkbot/pkg/logger"
	"github.com/sparkswap/sparkbot/pkg/syncgroup"
)

// schedulerLog resolves the logger at call time so output follows logger.Init.
func schedulerLog() *logrus.Entry {
	return logger.WithField("component", "scheduler")
}

// Params 交易周期参数，启动时确定，之后只读
type Params struct {
	Markets         []domain.Market
	PlacementMargin decimal.Decimal
	FillMargin      decimal.Decimal
	Interval        time.Duration
}

// Runtime holds the long-lived collaborators of the trading cycle. It is built once at startup.
type Runtime struct {
	Quotes   *quote.Engine
	Sizer    *sizing.Sizer
	Orders   *execution.Manager
	Hedger   *hedge.Hedger
	Outcomes *Outcomes // 可选
	Params   Params
}

func (rt *Runtime) validate() error {
	switch {
	case rt == nil:
		return errors.Wrap(domain.ErrConfiguration, "nil runtime")
	case rt.Quotes == nil, rt.Sizer == nil, rt.Orders == nil, rt.Hedger == nil:
		return errors.Wrap(domain.ErrConfiguration, "runtime is missing a component")
	case len(rt.Params.Markets) == 0:
		return errors.Wrap(domain.ErrConfiguration, "no markets")
	case rt.Params.Interval <= 0:
		return errors.Wrap(domain.ErrConfiguration, "interval must be positive")
	}
	return nil
}

// Scheduler 周期性地为每个市场运行一次交易周期
type Scheduler struct {
	rt *Runtime
}

func NewScheduler(rt *Runtime) (*Scheduler, error) {
	if err := rt.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{rt: rt}, nil
}

// Run fires a cycle for every market right away and then on every tick of the interval. Each market
// cycle runs in its own goroutine; a slow cycle never delays the next tick. Run returns once ctx is
// cancelled and all in-flight cycles have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	fire := func() {
		for _, m := range s.rt.Params.Markets {
			wg.Add(1)
			go func(m domain.Market) {
				defer wg.Done()
				_ = s.RunCycle(ctx, m)
			}(m)
		}
	}

	schedulerLog().Infof("starting trading cycles every %s for %d markets", s.rt.Params.Interval, len(s.rt.Params.Markets))
	fire()

	ticker := time.NewTicker(s.rt.Params.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			schedulerLog().Info("scheduler stopping, waiting for in-flight cycles")
			wg.Wait()
			return nil
		case <-ticker.C:
			fire()
		}
	}
}

// RunCycle quotes market, clears its resting orders and re-quotes both sides. The returned error is
// the market-level failure (quote or order listing), already logged. Side failures are logged and
// recorded but never returned.
func (s *Scheduler) RunCycle(ctx context.Context, market domain.Market) error {
	log := schedulerLog().WithField("market", market.String())
	out := s.rt.Outcomes
	out.CycleStarted(market)

	quotes, err := s.rt.Quotes.Quote(ctx, market, s.rt.Params.PlacementMargin)
	if err != nil {
		log.Errorf("[%s] failed to get quotes: %v", market, err)
		out.CycleFailed(market, err)
		return err
	}
	log.Infof("[%s] quotes: bid %s @ %s, ask %s @ %s", market,
		quotes.Bid.Amount.StringFixed(domain.AmountPrecision), quotes.Bid.Price.StringFixed(domain.PricePrecision),
		quotes.Ask.Amount.StringFixed(domain.AmountPrecision), quotes.Ask.Price.StringFixed(domain.PricePrecision))

	summary, err := s.rt.Orders.CancelAll(ctx, market)
	if err != nil {
		log.Errorf("[%s] failed to list active orders: %v", market, err)
		out.CycleFailed(market, err)
		return err
	}
	if summary.Attempted > 0 {
		log.Infof("[%s] cancelled %d of %d active orders", market, summary.Cancelled, summary.Attempted)
	}

	sg := syncgroup.NewSyncGroup()
	for _, side := range domain.Sides() {
		sg.Go(side.String(), func() error {
			return s.runSide(ctx, market, side, quotes.Point(side))
		})
	}
	for _, o := range sg.Wait() {
		if o.Err == nil {
			continue
		}
		side := domain.Side(o.Name)
		log.WithField("side", o.Name).Errorf("[%s:%s] %v", market, side, o.Err)
		out.SideFailed(market, side, o.Err)
	}
	return nil
}

func (s *Scheduler) runSide(ctx context.Context, market domain.Market, side domain.Side, point domain.QuotePoint) error {
	log := schedulerLog().WithFields(logrus.Fields{"market": market.String(), "side": side.String()})
	out := s.rt.Outcomes

	decision, err := s.rt.Sizer.Size(ctx, market, side, point.Price, point.Amount)
	if err != nil {
		return errors.Wrap(err, "size order")
	}
	if decision.Suppressed {
		log.Infof("[%s:%s] order size %s at or below minimum %s, not placing", market, side,
			decision.Amount.StringFixed(domain.AmountPrecision), s.rt.Sizer.Limits().GlobalMin.String())
		out.Suppressed(market, side)
		return nil
	}

	order, events, err := s.rt.Orders.PlaceAndWatch(ctx, market, side, point.Price, decision.Amount)
	if err != nil {
		return errors.Wrap(err, "place order")
	}
	out.Placed(market, side, order.ID)
	log.WithField("order_id", order.ID).Infof("[%s:%s] placed %s @ %s (bounded by %s)", market, side,
		decision.Amount.StringFixed(domain.AmountPrecision), point.Price.StringFixed(domain.PricePrecision), decision.Bound)

	for ev := range events {
		switch ev.Kind {
		case domain.OrderEventFill:
			log.Infof("[%s:%s] order %s filled %s @ %s", market, side, order.ID,
				ev.Fill.Amount.StringFixed(domain.AmountPrecision), ev.Fill.Price.StringFixed(domain.PricePrecision))
			if _, err := s.rt.Hedger.OnFill(ctx, market, side, ev.Fill); err != nil {
				log.Errorf("[%s:%s] hedge failed: %v", market, side, err)
				out.HedgeFailed(market, side, err)
				continue
			}
			out.Hedged(market, side)
		case domain.OrderEventStatus:
			log.Infof("[%s:%s] order %s finished: %s", market, side, order.ID, ev.Status)
		case domain.OrderEventError:
			return errors.Wrapf(ev.Err, "watch order %s", order.ID)
		}
	}
	return nil
}
