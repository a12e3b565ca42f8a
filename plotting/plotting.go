// Package plotting draws diagnostic figures of decompositions, such as the
// singular value decay used to choose the number of states of a model.
package plotting

import (
	"math"

	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Floor replaces singular values that cannot be drawn on a log scale.
const Floor = 1e-16

// Width and Height are the figure dimensions.
var (
	Width  = 5 * vg.Inch
	Height = 4 * vg.Inch
)

// SingularValues plots values against their index on a logarithmic axis and
// saves the figure to path. The format follows the extension of path.
func SingularValues(values []float64, title, path string) error {
	if len(values) == 0 {
		return errors.Wrap(modred.ErrData, "no singular values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "index"
	p.Y.Label.Text = "singular value"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	if err := plotutil.AddLinePoints(p, "singular values", plottify(values)); err != nil {
		return errors.Wrap(err, "add singular values")
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot to %s", path)
	}
	return nil
}

func plottify(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for index, v := range values {
		pts[index].X = float64(index + 1)
		pts[index].Y = math.Max(math.Abs(v), Floor)
	}
	return pts
}
