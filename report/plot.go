package report

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

// PlotPredictions saves a predicted-vs-observed scatter with the identity
// line to path. The image format follows the file extension (png, svg, pdf).
func PlotPredictions(path string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("PlotPredictions", len(actual), len(predicted), 0)
	}
	if len(actual) == 0 {
		return errors.NewValueErrorWrap("PlotPredictions", "nothing to plot", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = "Predicted vs observed yield"
	p.X.Label.Text = "Observed (t/ha)"
	p.Y.Label.Text = "Predicted (t/ha)"

	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	s.Color = color.RGBA{R: 50, G: 50, B: 255, A: 255}
	p.Add(s)

	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "identity line")
	}
	identity.Color = color.RGBA{R: 255, A: 255}
	identity.LineStyle.Width = vg.Points(1.5)
	p.Add(identity)

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
