package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/btsweep/internal/collector"
	"github.com/newthinker/btsweep/internal/config"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahoo_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New(config.ProviderConfig{})
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"^GSPC", "^GSPC"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	for _, tc := range tests {
		got := toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		valid  bool
	}{
		{"AAPL", true},
		{"^GSPC", true},
		{"BRK-B", true},
		{"EURUSD=X", true},
		{"0700.HK", true},
		{"", false},
		{"../etc", false},
		{"A B", false},
	}
	for _, tc := range tests {
		err := validateSymbol(tc.symbol)
		if (err == nil) != tc.valid {
			t.Errorf("validateSymbol(%q) error = %v, want valid=%v", tc.symbol, err, tc.valid)
		}
	}
}

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"^GSPC","currency":"USD"},
"timestamp":[1641220200,1641306600,1641393000],
"indicators":{"quote":[{"open":[4778.1,4804.5,null],"high":[4796.6,4818.6,null],
"low":[4758.2,4774.3,null],"close":[4796.5,4793.5,null],"volume":[2775190000,3080100000,null]}]}}],"error":null}}`

func TestYahoo_FetchHistory(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	y := New(config.ProviderConfig{BaseURL: srv.URL, Timeout: time.Second})
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)

	bars, err := y.FetchHistory(context.Background(), "^GSPC", start, end, "1d")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, bars, 2, "null row skipped")
	assert.Equal(t, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 4796.5, bars[0].Close)
	assert.Equal(t, int64(3080100000), bars[1].Volume)
	assert.Equal(t, "^GSPC", bars[1].Symbol)
}

func TestYahoo_FetchHistory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, core.ErrSymbolNotFound},
		{"server error", http.StatusBadGateway, ``, core.ErrCollectorFailed},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"invalid range"}}}`, core.ErrCollectorFailed},
		{"empty", http.StatusOK, `{"chart":{"result":[],"error":null}}`, core.ErrNoData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			y := New(config.ProviderConfig{BaseURL: srv.URL})
			_, err := y.FetchHistory(context.Background(), "SPY", time.Now().AddDate(0, -1, 0), time.Now(), "1d")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestYahoo_FetchHistory_InvalidSymbol(t *testing.T) {
	y := New(config.ProviderConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := y.FetchHistory(context.Background(), "bad symbol", time.Now(), time.Now(), "1d")
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}
