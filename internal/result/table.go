// Package result turns a finished run's analyzer output into flat tables.
package result

import (
	"time"

	"github.com/newthinker/btsweep/internal/core"
)

// Table is a named set of rows with fixed columns.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Column returns the values of one column, or nil if the column is absent.
func (t Table) Column(name string) []any {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// Aggregate is every table produced for one scene.
type Aggregate struct {
	TestNumber string
	Tables     []Table
}

// Table returns the table called name.
func (a *Aggregate) Table(name string) (Table, bool) {
	for _, t := range a.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func (a *Aggregate) add(t Table) {
	a.Tables = append(a.Tables, t)
}

// keyed prepends the test_number column to a table.
func keyed(name, testNumber string, columns []string, rows [][]any) Table {
	t := Table{Name: name, Columns: append([]string{"test_number"}, columns...)}
	t.Rows = make([][]any, len(rows))
	for i, r := range rows {
		t.Rows[i] = append([]any{testNumber}, r...)
	}
	return t
}

// ValuePoint is a dated account value.
type ValuePoint struct {
	Date  time.Time
	Value float64
}

// Values extracts the value series from the value table.
func (a *Aggregate) Values() []ValuePoint {
	t, ok := a.Table(TableValue)
	if !ok {
		return nil
	}
	dates, values := t.Column("Date"), t.Column("Value")
	out := make([]ValuePoint, 0, len(dates))
	for i := range dates {
		out = append(out, ValuePoint{Date: AsTime(dates[i]), Value: AsFloat(values[i])})
	}
	return out
}

// TimeLayout is how timestamps are stored as text.
const TimeLayout = "2006-01-02 15:04:05"

// AsTime converts a cell back to a time. Cells read from a database hold
// either a time.Time or text.
func AsTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range []string{TimeLayout, time.RFC3339Nano, core.DateLayout} {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
	case []byte:
		return AsTime(string(x))
	}
	return time.Time{}
}

// AsFloat converts a numeric cell to float64.
func AsFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return 0
}
