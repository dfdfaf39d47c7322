// Package smacross trades a fast/slow simple moving average cross with
// bracket orders.
package smacross

import (
	"errors"
	"fmt"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/indicator"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/newthinker/btsweep/internal/strategy"
	"go.uber.org/zap"
)

// Name is the registry name.
const Name = "sma_cross"

// SMACross buys a bracket when the fast SMA crosses above the slow SMA.
type SMACross struct {
	strategy.Standard

	fast, slow  int
	limitPct    float64
	stopPct     float64
	long, short []float64
}

// New creates the strategy from scene parameters.
func New(scene scenario.Scene, logger *zap.Logger) (*SMACross, error) {
	if scene.SMAFast <= 0 || scene.SMASlow <= 0 {
		return nil, core.WrapError(core.ErrSceneInvalid,
			fmt.Errorf("sma periods must be positive, got %d/%d", scene.SMAFast, scene.SMASlow))
	}
	return &SMACross{
		Standard: strategy.NewStandard(scene, logger),
		fast:     scene.SMAFast,
		slow:     scene.SMASlow,
		limitPct: scene.LimitPrice,
		stopPct:  scene.StopPrice,
	}, nil
}

// Factory adapts New to strategy.Factory.
func Factory(scene scenario.Scene, logger *zap.Logger) (backtest.Strategy, error) {
	return New(scene, logger)
}

func (s *SMACross) Name() string { return Name }

// MinPeriod waits for the slow average plus one bar to detect a cross.
func (s *SMACross) MinPeriod() int { return max(s.fast, s.slow) + 1 }

func (s *SMACross) Start(env *backtest.Env) error {
	closes := env.Feeds[0].Closes()
	fast := indicator.SMA(closes, s.fast)
	slow := indicator.SMA(closes, s.slow)
	s.long = indicator.CrossUp(fast, slow)
	s.short = indicator.CrossDown(fast, slow)
	return nil
}

func (s *SMACross) Next(env *backtest.Env) error {
	if s.Scene.PrintDev {
		s.PrintDev(env)
	}
	if env.Now().Before(s.Scene.TradeStartTime()) {
		return nil
	}
	if s.Scene.PrintOHLCV > -1 {
		s.PrintOHLCV(env, s.Scene.PrintOHLCV)
	}
	if s.Busy() {
		return nil
	}

	i := env.Index()
	symbol := env.Symbol()
	if s.long[i] == 0 || env.Broker.Position(symbol).Size > 0 {
		return nil
	}

	close := env.Master().Close
	// 90% of the account, in fractional units
	size := env.Broker.Value() * 0.9 / close
	orders, err := env.Broker.BuyBracket(symbol, size,
		close*(1-s.stopPct), close*(1+s.limitPct), env.Now(), i)
	if errors.Is(err, core.ErrOrderRejected) {
		s.Logger.Debug("bracket rejected", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	s.Track(orders)
	return nil
}

// Signals exposes the cross lines aligned with the master feed.
func (s *SMACross) Signals() map[string][]float64 {
	return map[string][]float64{
		"long_buy_signal":   s.long,
		"short_sell_signal": s.short,
	}
}
