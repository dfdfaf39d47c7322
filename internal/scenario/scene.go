package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/newthinker/btsweep/internal/core"
)

// Scene is one concrete parameter combination.
type Scene struct {
	BatchName     string `mapstructure:"batchname"`
	BatchRuntime  string `mapstructure:"batch_runtime"`
	TestNumber    string `mapstructure:"test_number"`
	SaveResult    bool   `mapstructure:"save_result"`
	SaveTearsheet bool   `mapstructure:"save_tearsheet"`
	SaveExcel     bool   `mapstructure:"save_excel"`
	SaveDB        bool   `mapstructure:"save_db"`
	FullExport    bool   `mapstructure:"full_export"`
	SavePath      string `mapstructure:"save_path"`
	SaveName      string `mapstructure:"save_name"`

	ExcludedDates []string `mapstructure:"excluded_dates"`
	FromDate      string   `mapstructure:"from_date"`
	TradeStart    string   `mapstructure:"trade_start"`
	ToDate        string   `mapstructure:"to_date"`
	Duration      int      `mapstructure:"duration"`

	Instrument string `mapstructure:"instrument"`
	Benchmark  string `mapstructure:"benchmark"`
	Source     string `mapstructure:"source"`
	Interval   string `mapstructure:"interval"`

	InitInvestment float64 `mapstructure:"initinvestment"`
	Commission     float64 `mapstructure:"commission"`
	Margin         float64 `mapstructure:"margin"`
	Mult           float64 `mapstructure:"mult"`

	PrintDev          bool `mapstructure:"print_dev"`
	PrintOrdersTrades bool `mapstructure:"print_orders_trades"`
	PrintOn           bool `mapstructure:"printon"`
	PrintOHLCV        int  `mapstructure:"print_ohlcv"`
	PrintFinalOutput  bool `mapstructure:"print_final_output"`
	PlotOn            bool `mapstructure:"ploton"`

	Strategy   string  `mapstructure:"strategy"`
	SMAFast    int     `mapstructure:"sma_fast"`
	SMASlow    int     `mapstructure:"sma_slow"`
	LimitPrice float64 `mapstructure:"limit_price"`
	StopPrice  float64 `mapstructure:"stop_price"`
	TradeSize  float64 `mapstructure:"trade_size"`

	// Extra holds parameters without a typed field.
	Extra map[string]any `mapstructure:",remain"`

	keys   []string
	values map[string]any
}

// newScene decodes a combination and derives the dependent dates.
func newScene(keys []string, combo map[string]any) (Scene, error) {
	var s Scene
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return Scene{}, err
	}
	if err := dec.Decode(combo); err != nil {
		return Scene{}, core.WrapError(core.ErrSceneInvalid, err)
	}

	from, err := core.ParseDate(s.FromDate)
	if err != nil {
		return Scene{}, core.WrapError(core.ErrSceneInvalid, fmt.Errorf("from_date: %w", err))
	}
	if s.Duration > 0 {
		s.ToDate = from.AddDate(0, 0, s.Duration).Format(core.DateLayout)
		s.TradeStart = s.FromDate
	} else if s.TradeStart == "" {
		s.TradeStart = s.FromDate
	}
	for name, v := range map[string]string{"trade_start": s.TradeStart, "to_date": s.ToDate} {
		if _, err := core.ParseDate(v); err != nil {
			return Scene{}, core.WrapError(core.ErrSceneInvalid, fmt.Errorf("%s: %w", name, err))
		}
	}
	for _, d := range s.ExcludedDates {
		if _, err := core.ParseDate(d); err != nil {
			return Scene{}, core.WrapError(core.ErrSceneInvalid, fmt.Errorf("excluded_dates: %w", err))
		}
	}

	combo["to_date"] = s.ToDate
	combo["trade_start"] = s.TradeStart
	s.keys = keys
	s.values = combo
	return s, nil
}

// Keys returns the scene's parameter names in parameter order.
func (s Scene) Keys() []string {
	return s.keys
}

// Get returns a parameter value by name.
func (s Scene) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// WithTestNumber returns a copy of the scene carrying the given test number.
func (s Scene) WithTestNumber(id string) Scene {
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	values["test_number"] = id
	s.values = values
	s.TestNumber = id
	return s
}

// From returns the data start date.
func (s Scene) From() time.Time { return mustDate(s.FromDate) }

// To returns the data end date.
func (s Scene) To() time.Time { return mustDate(s.ToDate) }

// TradeStartTime returns the first date the strategy may trade.
func (s Scene) TradeStartTime() time.Time { return mustDate(s.TradeStart) }

// Excluded returns excluded_dates as a set keyed by YYYY-MM-DD.
func (s Scene) Excluded() map[string]bool {
	if len(s.ExcludedDates) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s.ExcludedDates))
	for _, d := range s.ExcludedDates {
		out[d] = true
	}
	return out
}

// dates are validated in newScene
func mustDate(v string) time.Time {
	t, _ := core.ParseDate(v)
	return t
}

// NewTestNumber returns a short unique identifier for a scene run.
func NewTestNumber() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
