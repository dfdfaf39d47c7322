package sweep

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/btsweep/internal/collector"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// dataCache fetches each (source, symbol, range, interval) once per sweep.
// Concurrent requests for the same key share one fetch. Failed fetches are
// not cached.
type dataCache struct {
	collectors *collector.Registry
	metrics    *metrics.Registry
	logger     *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	bars  map[string][]core.OHLCV
}

func newDataCache(collectors *collector.Registry, m *metrics.Registry, logger *zap.Logger) *dataCache {
	return &dataCache{
		collectors: collectors,
		metrics:    m,
		logger:     logger,
		bars:       make(map[string][]core.OHLCV),
	}
}

// Fetch returns a copy of the cached bars, fetching them on first use.
func (c *dataCache) Fetch(ctx context.Context, source, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s", source, symbol,
		start.Format(core.DateLayout), end.Format(core.DateLayout), interval)

	c.mu.RLock()
	bars, ok := c.bars[key]
	c.mu.RUnlock()
	if ok {
		return slices.Clone(bars), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.bars[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		col, err := c.collectors.Lookup(source)
		if err != nil {
			return nil, err
		}
		fetched, err := col.FetchHistory(ctx, symbol, start, end, interval)
		c.metrics.RecordFetch(source, err)
		if err != nil {
			return nil, fmt.Errorf("fetching %s from %s: %w", symbol, source, err)
		}

		valid := fetched[:0:0]
		for _, b := range fetched {
			if b.IsValid() {
				valid = append(valid, b)
			}
		}
		if dropped := len(fetched) - len(valid); dropped > 0 {
			c.logger.Warn("dropped invalid bars",
				zap.String("symbol", symbol),
				zap.Int("dropped", dropped))
		}
		if len(valid) == 0 {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no valid bars", symbol))
		}

		c.mu.Lock()
		c.bars[key] = valid
		c.mu.Unlock()
		return valid, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared data fetch", zap.String("symbol", symbol))
	}
	return slices.Clone(v.([]core.OHLCV)), nil
}
