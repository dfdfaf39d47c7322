package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

// Status is the state of a polled feed.
type Status string

const (
	// StatusDelayed means the feed is still backfilling history.
	StatusDelayed Status = "DELAYED"
	// StatusLive means the feed has caught up with the exchange.
	StatusLive Status = "LIVE"
)

// Update carries newly completed bars, or only a status change when Bars is
// empty.
type Update struct {
	Status Status
	Bars   []core.OHLCV
}

// PollOptions configures Poll.
type PollOptions struct {
	Interval string
	Since    time.Time
	Every    time.Duration
	// Retries is how many consecutive fetch failures are tolerated.
	Retries int
}

// Poll backfills klines from opts.Since and then keeps polling every
// opts.Every. The newest kline of each response is still forming and is
// dropped, so each bar is delivered once and complete. fn is called for new
// bars and for status changes. Poll returns when ctx is done, when fn
// returns an error, or after too many failed fetches.
func (b *Binance) Poll(ctx context.Context, symbol string, opts PollOptions, fn func(Update) error) error {
	if opts.Every <= 0 {
		opts.Every = time.Minute
	}
	if opts.Retries <= 0 {
		opts.Retries = 5
	}

	next := opts.Since
	status := StatusDelayed
	if err := fn(Update{Status: status}); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.Every)
	defer ticker.Stop()

	failures := 0
	for {
		page, err := b.klines(ctx, symbol, opts.Interval, next, time.Time{})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures > opts.Retries {
				return fmt.Errorf("polling %s after %d attempts: %w", symbol, failures, err)
			}
		} else {
			failures = 0
			full := len(page) >= b.limit
			if len(page) > 0 {
				page = page[:len(page)-1]
			}
			if len(page) > 0 {
				next = page[len(page)-1].Time.Add(time.Millisecond)
			}

			if len(page) > 0 {
				if err := fn(Update{Status: status, Bars: page}); err != nil {
					return err
				}
			}
			if !full && status != StatusLive {
				status = StatusLive
				if err := fn(Update{Status: status}); err != nil {
					return err
				}
			}
			if full {
				// more history waiting
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
