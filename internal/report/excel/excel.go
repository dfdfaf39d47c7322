// Package excel writes a scene's result tables to an xlsx workbook.
package excel

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/scenario"
	"github.com/xuri/excelize/v2"
)

// Column widths.
const (
	narrow = 8
	medium = 12
	wide   = 16
	xWide  = 20
)

const dateTimeLayout = "2006-01-02 15:04"

// itemValue tables are single-row and written as Item/Value pairs.
var itemValue = map[string]bool{
	result.TableTradeAnalysis: true,
	result.TableDrawdown:      true,
	result.TableQuantStats:    true,
}

// skipped tables only go to the database.
var skipped = map[string]bool{
	result.TableGlobalOut:    true,
	result.TableOrderHistory: true,
	result.TableDimension:    true,
}

type styles struct {
	header  int
	float2d int
	float5d int
	int0d   int
	left    int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	mk := func(st *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(st)
		return id
	}
	numFmt := func(format string) *excelize.Style {
		return &excelize.Style{CustomNumFmt: &format}
	}
	s.header = mk(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "000000"},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top", Horizontal: "center"},
	})
	s.float2d = mk(numFmt("#,##0.00"))
	s.float5d = mk(numFmt("#,##0.00000"))
	s.int0d = mk(numFmt("#,##0"))
	s.left = mk(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "left"}})
	return s, err
}

// FileName returns the workbook name for a scene.
func FileName(scene scenario.Scene) string {
	return fmt.Sprintf("%s-%s.xlsx", scene.SaveName, scene.TestNumber)
}

// Write saves agg as a workbook in dir and returns the file path.
func Write(dir string, agg *result.Aggregate, scene scenario.Scene) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return "", err
	}

	first := true
	addSheet := func(name string) error {
		if first {
			first = false
			return f.SetSheetName("Sheet1", name)
		}
		_, err := f.NewSheet(name)
		return err
	}

	for _, t := range agg.Tables {
		if skipped[t.Name] {
			continue
		}
		if err := addSheet(t.Name); err != nil {
			return "", err
		}
		if itemValue[t.Name] {
			err = writeItemValue(f, st, t)
		} else {
			err = writeTable(f, st, t)
		}
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}

	if err := addSheet(result.TableDimension); err != nil {
		return "", err
	}
	if err := writeDimension(f, st, scene); err != nil {
		return "", fmt.Errorf("sheet dimension: %w", err)
	}

	path := filepath.Join(dir, FileName(scene))
	if err := f.SaveAs(path); err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving %s: %w", path, err))
	}
	return path, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func colName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

func header(f *excelize.File, st styles, sheet string, cols []string) error {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, 1, 1, st.header)
}

func display(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(dateTimeLayout)
	case []string, []any, map[string]any:
		return result.Cell(v)
	default:
		return v
	}
}

// writeTable writes a table without its test_number column.
func writeTable(f *excelize.File, st styles, t result.Table) error {
	sheet := t.Name
	skip := 0
	if len(t.Columns) > 0 && t.Columns[0] == "test_number" {
		skip = 1
	}
	cols := t.Columns[skip:]
	heads := cols
	if t.Name == result.TableTradeList {
		heads = make([]string, len(cols))
		for i, c := range cols {
			heads[i] = capitalize(c)
		}
	}
	if err := header(f, st, sheet, heads); err != nil {
		return err
	}

	for r, row := range t.Rows {
		vals := make([]any, 0, len(cols))
		for _, v := range row[skip:] {
			vals = append(vals, display(v))
		}
		if err := f.SetSheetRow(sheet, cell(1, r+2), &vals); err != nil {
			return err
		}
	}

	for i := range cols {
		width, style := columnFormat(st, t, skip+i)
		name := colName(i + 1)
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
		if style != 0 && len(t.Rows) > 0 {
			if err := f.SetCellStyle(sheet, cell(i+1, 2), cell(i+1, len(t.Rows)+1), style); err != nil {
				return err
			}
		}
	}
	return nil
}

func columnFormat(st styles, t result.Table, col int) (float64, int) {
	var sample any
	for _, r := range t.Rows {
		if col < len(r) && r[col] != nil {
			sample = r[col]
			break
		}
	}
	name := strings.ToLower(t.Columns[col])
	switch sample.(type) {
	case time.Time:
		return xWide, 0
	case float64:
		if name == "commission" {
			return medium, st.float5d
		}
		return wide, st.float2d
	case int, int64:
		return narrow, st.int0d
	default:
		return medium, 0
	}
}

func writeItemValue(f *excelize.File, st styles, t result.Table) error {
	sheet := t.Name
	if err := header(f, st, sheet, []string{"Item", "Value"}); err != nil {
		return err
	}
	if len(t.Rows) == 0 {
		return nil
	}
	r := 2
	for i, c := range t.Columns {
		if c == "test_number" {
			continue
		}
		row := []any{c, display(t.Rows[0][i])}
		if err := f.SetSheetRow(sheet, cell(1, r), &row); err != nil {
			return err
		}
		r++
	}
	if err := f.SetColWidth(sheet, "A", "A", xWide); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", medium); err != nil {
		return err
	}
	return f.SetColStyle(sheet, "A:B", st.left)
}

// writeDimension lists every scene parameter with the test number first.
// excluded_dates is left out and the test number appears once.
func writeDimension(f *excelize.File, st styles, scene scenario.Scene) error {
	sheet := result.TableDimension
	if err := header(f, st, sheet, []string{"Item", "Value"}); err != nil {
		return err
	}
	row := []any{"test number", scene.TestNumber}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		return err
	}
	r := 3
	for _, k := range scene.Keys() {
		if k == "excluded_dates" || k == "test_number" {
			continue
		}
		v, _ := scene.Get(k)
		row := []any{k, display(result.Cell(v))}
		if err := f.SetSheetRow(sheet, cell(1, r), &row); err != nil {
			return err
		}
		r++
	}
	if err := f.SetColWidth(sheet, "A", "B", xWide); err != nil {
		return err
	}
	return f.SetColStyle(sheet, "A:B", st.left)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
