// Package binance reads spot klines from the Binance REST API, for
// backtests and for tailing a live feed.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
)

const (
	defaultBaseURL = "https://api.binance.com"
	klineLimit     = 1000
)

// Binance implements the Collector interface for Binance spot klines
type Binance struct {
	client  *http.Client
	baseURL string
	limit   int
}

// New creates a new Binance collector
func New(cfg config.ProviderConfig) *Binance {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Binance{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		limit:   klineLimit,
	}
}

func (b *Binance) Name() string {
	return "binance"
}

// Symbol converts BNB/USDT and BNB-USDT to the exchange form BNBUSDT.
func Symbol(s string) string {
	return strings.ToUpper(strings.NewReplacer("/", "", "-", "").Replace(s))
}

// FetchHistory fetches historical OHLCV data from Binance, paging through
// the kline limit.
func (b *Binance) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	var data []core.OHLCV
	next := start
	for {
		page, err := b.klines(ctx, symbol, interval, next, end)
		if err != nil {
			return nil, err
		}
		data = append(data, page...)
		if len(page) < b.limit {
			break
		}
		next = page[len(page)-1].Time.Add(time.Millisecond)
	}
	if len(data) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no klines for %s", symbol))
	}
	return data, nil
}

// klines fetches one page. A zero end leaves the range open.
func (b *Binance) klines(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", Symbol(symbol))
	q.Set("interval", toInterval(interval))
	q.Set("limit", strconv.Itoa(b.limit))
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		// endTime is inclusive on the exchange side
		q.Set("endTime", strconv.FormatInt(end.UnixMilli()-1, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching klines: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		json.NewDecoder(resp.Body).Decode(&apiErr)
		// -1121 is "Invalid symbol."
		if apiErr.Code == -1121 {
			return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("binance: %s", symbol))
		}
		return nil, core.WrapError(core.ErrCollectorFailed,
			fmt.Errorf("unexpected status: %d %s", resp.StatusCode, apiErr.Msg))
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	data := make([]core.OHLCV, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		open := parseFloat(k[1])
		high := parseFloat(k[2])
		low := parseFloat(k[3])
		close := parseFloat(k[4])
		volume := parseFloat(k[5])

		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   int64(volume),
			Time:     time.UnixMilli(int64(openTime)).UTC(),
		})
	}
	return data, nil
}

func parseFloat(v any) float64 {
	s, _ := v.(string)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func toInterval(interval string) string {
	switch interval {
	case "1m", "3m", "5m", "15m", "30m":
		return interval
	case "1h", "2h", "4h", "6h", "8h", "12h":
		return interval
	case "1d", "3d", "1w", "1M":
		return interval
	case "1wk":
		return "1w"
	default:
		return "1d"
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
