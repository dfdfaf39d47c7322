// Package yahoo reads daily and intraday bars from the Yahoo Finance v8
// chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart/"
	userAgent      = "Mozilla/5.0 (compatible; btsweep)"
)

// validSymbol matches symbols like AAPL, ^GSPC, BRK-B, EURUSD=X, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9=\-]{1,12}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the Yahoo Finance collector
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo collector
func New(cfg config.ProviderConfig) *Yahoo {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Yahoo{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchHistory fetches historical OHLCV data
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, err)
	}

	q := url.Values{}
	q.Set("interval", toYahooInterval(interval))
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	q.Set("includePrePost", "false")
	u := y.baseURL + chartPath + url.PathEscape(toYahooSymbol(symbol)) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	var result chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("yahoo: %s", symbol))
	case resp.StatusCode != http.StatusOK:
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	case decodeErr != nil:
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", decodeErr))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]
	if len(quotes.Open) < len(r.Timestamp) || len(quotes.High) < len(r.Timestamp) ||
		len(quotes.Low) < len(r.Timestamp) || len(quotes.Close) < len(r.Timestamp) {
		return nil, core.WrapError(core.ErrCollectorFailed, errors.New("quote arrays shorter than timestamps"))
	}

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if quotes.Open[i] == nil || quotes.High[i] == nil || quotes.Low[i] == nil || quotes.Close[i] == nil {
			continue // Skip missing data
		}
		t := time.Unix(ts, 0).UTC()
		if !end.IsZero() && !t.Before(end) {
			continue
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     *quotes.Open[i],
			High:     *quotes.High[i],
			Low:      *quotes.Low[i],
			Close:    *quotes.Close[i],
			Volume:   volume,
			Time:     dayStart(t, interval),
		})
	}
	if len(data) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for %s between %s and %s",
			symbol, start.Format(core.DateLayout), end.Format(core.DateLayout)))
	}
	return data, nil
}

// dayStart truncates daily and coarser bars to midnight UTC so that bars of
// different exchanges line up by date.
func dayStart(t time.Time, interval string) time.Time {
	switch interval {
	case "1d", "1wk", "1w", "1mo":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t
}

func toYahooInterval(interval string) string {
	switch interval {
	case "1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo":
		return interval
	case "1w":
		return "1wk"
	default:
		return "1d"
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
