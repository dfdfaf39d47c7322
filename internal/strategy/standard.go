package strategy

import (
	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
	"go.uber.org/zap"
)

// Standard carries the notification handling and optional bar logging
// shared by strategies. Embed it and implement Name, Start, MinPeriod and Next.
type Standard struct {
	Scene  scenario.Scene
	Logger *zap.Logger

	live map[int]bool
}

// NewStandard returns a base for scene.
func NewStandard(scene scenario.Scene, logger *zap.Logger) Standard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Standard{Scene: scene, Logger: logger, live: make(map[int]bool)}
}

// Track marks orders as outstanding until they complete or die.
func (s *Standard) Track(orders []broker.Order) {
	for _, o := range orders {
		s.live[o.Ref] = true
	}
}

// Busy reports whether tracked orders are still outstanding.
func (s *Standard) Busy() bool { return len(s.live) > 0 }

// NotifyOrder logs order updates when print_orders_trades is set.
func (s *Standard) NotifyOrder(env *backtest.Env, o broker.Order) {
	if !o.Alive() {
		delete(s.live, o.Ref)
	}
	if !s.Scene.PrintOrdersTrades {
		return
	}
	s.Logger.Info("order",
		zap.String("date", env.Now().Format(core.DateLayout)),
		zap.Int("ref", o.Ref),
		zap.String("side", string(o.Side)),
		zap.String("type", string(o.Type)),
		zap.String("status", string(o.Status)),
		zap.Float64("size", o.Size),
		zap.Float64("price", o.Price),
	)
	if o.Status == broker.OrderStatusFilled {
		s.Logger.Info(string(o.Side)+" executed",
			zap.String("symbol", o.Symbol),
			zap.Float64("price", o.Executed.Price),
			zap.Float64("cost", o.Executed.Value),
			zap.Float64("comm", o.Executed.Commission),
		)
	}
}

// NotifyTrade logs closed trades when print_orders_trades is set.
func (s *Standard) NotifyTrade(env *backtest.Env, t broker.Trade) {
	if !t.IsClosed || !s.Scene.PrintOrdersTrades {
		return
	}
	s.Logger.Info("trade closed",
		zap.String("date", env.Now().Format(core.DateLayout)),
		zap.String("symbol", t.Symbol),
		zap.Float64("pnl", t.PnL),
		zap.Float64("pnl_net", t.PnLComm),
	)
}

// PrintOHLCV logs the current bar of a feed.
func (s *Standard) PrintOHLCV(env *backtest.Env, feed int) {
	b, ok := env.Current(feed)
	if !ok {
		return
	}
	s.Logger.Info("ohlcv",
		zap.String("date", env.Now().Format(core.DateLayout)),
		zap.Float64("o", b.Open),
		zap.Float64("h", b.High),
		zap.Float64("l", b.Low),
		zap.Float64("c", b.Close),
		zap.Int64("v", b.Volume),
	)
}

// PrintDev logs account state for ad hoc debugging.
func (s *Standard) PrintDev(env *backtest.Env) {
	s.Logger.Debug("dev",
		zap.String("date", env.Now().Format(core.DateLayout)),
		zap.Float64("cash", env.Broker.Cash()),
		zap.Float64("value", env.Broker.Value()),
		zap.Float64("close", env.Master().Close),
	)
}
