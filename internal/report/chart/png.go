package chart

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/result"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveEquityPNG plots portfolio value over time. The file type follows the
// extension of path.
func SaveEquityPNG(path string, values []result.ValuePoint) error {
	if len(values) == 0 {
		return core.WrapError(core.ErrNoData, errors.New("no values to plot"))
	}

	p := plot.New()
	p.Title.Text = "Portfolio value"
	p.Y.Label.Text = "Value"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(v.Date.Unix()), Y: v.Value}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("equity line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)

	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving %s: %w", path, err))
	}
	return nil
}
