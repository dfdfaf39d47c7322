package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/collector"
	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2021, 7, 15, 12, 0, 0, 0, time.UTC)

// exchange serves one-minute klines starting at t0.
type exchange struct {
	mu   sync.Mutex
	bars int
}

func (e *exchange) add(n int) {
	e.mu.Lock()
	e.bars += n
	e.mu.Unlock()
}

func (e *exchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := r.URL.Query()
	if q.Get("symbol") != "BNBUSDT" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
	end := int64(1) << 62
	if s := q.Get("endTime"); s != "" {
		end, _ = strconv.ParseInt(s, 10, 64)
	}

	out := [][]any{}
	for i := 0; i < e.bars && len(out) < limit; i++ {
		open := t0.Add(time.Duration(i) * time.Minute).UnixMilli()
		if open < start || open > end {
			continue
		}
		p := strconv.Itoa(300 + i)
		out = append(out, []any{open, p, p, p, p, "12.5", open + 59999})
	}
	json.NewEncoder(w).Encode(out)
}

func newTest(t *testing.T, bars int) (*Binance, *exchange) {
	t.Helper()
	ex := &exchange{bars: bars}
	srv := httptest.NewServer(ex)
	t.Cleanup(srv.Close)

	b := New(config.ProviderConfig{BaseURL: srv.URL, Timeout: time.Second})
	b.limit = 3
	return b, ex
}

func TestBinance_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Binance)(nil)
}

func TestBinance_Name(t *testing.T) {
	b := New(config.ProviderConfig{})
	if b.Name() != "binance" {
		t.Errorf("expected 'binance', got '%s'", b.Name())
	}
}

func TestSymbol(t *testing.T) {
	tests := map[string]string{
		"BNB/USDT": "BNBUSDT",
		"btc-usdt": "BTCUSDT",
		"ETHUSDT":  "ETHUSDT",
	}
	for in, want := range tests {
		if got := Symbol(in); got != want {
			t.Errorf("Symbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBinance_ToInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1m", "1m"},
		{"5m", "5m"},
		{"15m", "15m"},
		{"1h", "1h"},
		{"4h", "4h"},
		{"1d", "1d"},
		{"1wk", "1w"},
		{"unknown", "1d"},
	}

	for _, tc := range tests {
		got := toInterval(tc.input)
		if got != tc.expected {
			t.Errorf("toInterval(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestBinance_FetchHistory_Pages(t *testing.T) {
	b, _ := newTest(t, 10)

	bars, err := b.FetchHistory(context.Background(), "BNB/USDT", t0, t0.Add(7*time.Minute), "1m")
	require.NoError(t, err)
	require.Len(t, bars, 7)
	for i, bar := range bars {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Minute), bar.Time)
		assert.Equal(t, float64(300+i), bar.Close)
	}
	assert.Equal(t, int64(12), bars[0].Volume)
}

func TestBinance_FetchHistory_Errors(t *testing.T) {
	b, _ := newTest(t, 0)

	_, err := b.FetchHistory(context.Background(), "BNBUSDT", t0, t0.Add(time.Hour), "1m")
	assert.True(t, errors.Is(err, core.ErrNoData))

	_, err = b.FetchHistory(context.Background(), "NOPE", t0, t0.Add(time.Hour), "1m")
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}

func TestBinance_Poll(t *testing.T) {
	b, ex := newTest(t, 7)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		statuses []Status
		counts   []int
		closes   []float64
	)
	err := b.Poll(ctx, "BNBUSDT", PollOptions{Interval: "1m", Since: t0, Every: 10 * time.Millisecond},
		func(u Update) error {
			statuses = append(statuses, u.Status)
			counts = append(counts, len(u.Bars))
			for _, bar := range u.Bars {
				closes = append(closes, bar.Close)
			}
			if u.Status == StatusLive && len(u.Bars) == 0 {
				// a new candle starts forming, completing bar 6
				ex.add(1)
			}
			if u.Status == StatusLive && len(u.Bars) > 0 {
				cancel()
			}
			return nil
		})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []Status{StatusDelayed, StatusDelayed, StatusDelayed, StatusDelayed, StatusLive, StatusLive}, statuses)
	assert.Equal(t, []int{0, 2, 2, 2, 0, 1}, counts)
	assert.Equal(t, []float64{300, 301, 302, 303, 304, 305, 306}, closes, "each bar once, none forming")
}

func TestBinance_Poll_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := New(config.ProviderConfig{BaseURL: srv.URL})
	err := b.Poll(context.Background(), "BNBUSDT",
		PollOptions{Interval: "1m", Every: time.Millisecond, Retries: 2},
		func(Update) error { return nil })

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBinance_Poll_HandlerErrorStops(t *testing.T) {
	b, _ := newTest(t, 2)
	stop := errors.New("stop")

	err := b.Poll(context.Background(), "BNBUSDT", PollOptions{Interval: "1m", Since: t0},
		func(Update) error { return stop })
	assert.ErrorIs(t, err, stop)
}
