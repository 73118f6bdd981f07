package report

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"letternet/internal/trainer"
)

// PlotScores renders the score history as a PNG (or any format the path
// extension selects) at path.
func PlotScores(path string, history []trainer.Sample, title string) error {
	if len(history) == 0 {
		return errors.New("report: empty score history")
	}
	points := make(plotter.XYs, len(history))
	for i, s := range history {
		points[i] = plotter.XY{X: float64(s.Iteration), Y: s.Score}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "score"

	line, err := plotter.NewLine(points)
	if err != nil {
		return errors.Wrap(err, "report: line")
	}
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return errors.Wrap(err, "report: scatter")
	}
	scatter.GlyphStyle.Radius = vg.Length(2)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(line, scatter)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "report: save %s", path)
	}
	return nil
}
