// Package collector fetches historical market data for backtests.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

// Collector defines the interface for data collectors
type Collector interface {
	Name() string

	// FetchHistory returns bars in [start, end) ordered by time.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error)
}
