// Package scenario holds the sweep parameter set and expands it into scenes.
package scenario

import (
	"sort"
	"time"
)

// Param is a known sweep parameter. Dimension parameters are the columns
// written to the dimension table for every scene.
type Param struct {
	Name      string
	Default   any
	Dimension bool
}

// Pair is a parameter name with its configured value.
type Pair struct {
	Name  string
	Value any
}

// DefaultParams returns the built-in parameters in their canonical order.
func DefaultParams() []Param {
	return []Param{
		{"batchname", "None", true},
		{"batch_runtime", time.Now().Format("2006-01-02 15:04"), false},
		{"test_number", "", true},
		{"save_result", false, false},
		{"save_tearsheet", false, false},
		{"save_excel", false, false},
		{"save_db", false, false},
		{"full_export", true, false},
		{"save_path", "results", false},
		{"excluded_dates", nil, false},
		{"save_name", "results", false},
		{"from_date", "2020-01-01", true},
		{"trade_start", "", true},
		{"to_date", "2020-12-31", true},
		{"duration", 0, false},
		{"instrument", "^GSPC", true},
		{"benchmark", "", true},
		{"source", "yahoo", false},
		{"interval", "1d", false},
		{"initinvestment", 10000.0, false},
		{"commission", 0.0, true},
		{"margin", 0.0, false},
		{"mult", 1.0, true},
		{"print_dev", false, false},
		{"print_orders_trades", false, false},
		{"printon", false, false},
		{"print_ohlcv", -1, false},
		{"print_final_output", false, false},
		{"ploton", false, false},
		{"strategy", "sma_cross", true},
		{"sma_fast", 20, true},
		{"sma_slow", 100, true},
		{"limit_price", 0.08, true},
		{"stop_price", 0.04, true},
		{"trade_size", 1.0, true},
	}
}

// Set is an ordered parameter set. Values may be scalars or lists.
type Set struct {
	names  []string
	values map[string]any
	dims   map[string]bool
}

// NewSet returns a set seeded with DefaultParams.
func NewSet() *Set {
	s := &Set{
		values: make(map[string]any),
		dims:   make(map[string]bool),
	}
	for _, p := range DefaultParams() {
		s.names = append(s.names, p.Name)
		s.values[p.Name] = p.Default
		s.dims[p.Name] = p.Dimension
	}
	return s
}

// Override replaces parameter values. Unknown keys are appended after the
// known ones in sorted order.
func (s *Set) Override(values map[string]any) {
	var added []string
	for k, v := range values {
		if _, ok := s.values[k]; !ok {
			added = append(added, k)
		}
		s.values[k] = v
	}
	sort.Strings(added)
	s.names = append(s.names, added...)
}

// SetDimensions overrides dimension flags. Unknown names are ignored.
func (s *Set) SetDimensions(dims map[string]bool) {
	for k, v := range dims {
		if _, ok := s.values[k]; ok {
			s.dims[k] = v
		}
	}
}

// Dimensions returns the dimension parameter names in parameter order.
func (s *Set) Dimensions() []string {
	var out []string
	for _, n := range s.names {
		if s.dims[n] {
			out = append(out, n)
		}
	}
	return out
}

// Names returns all parameter names in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Value returns the configured value of a parameter.
func (s *Set) Value(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Values returns the parameters as configured, before expansion.
func (s *Set) Values() []Pair {
	out := make([]Pair, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, Pair{Name: n, Value: s.values[n]})
	}
	return out
}
