package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewEnsemblePlot creates a scatter plot of a prior and a posterior ensemble
// of two state variables stored row-wise (2 x N matrices, one realization per
// column), with the observed value of the first state variable drawn as a
// vertical line.
// It returns error if the plot fails to be created. This can be due to either
// of the following conditions:
// * either of the supplied ensembles is nil
// * either of the supplied ensembles does not have exactly 2 rows
// * gonum plot fails to be created
func NewEnsemblePlot(prior, posterior *mat.Dense, obs float64) (*plot.Plot, error) {
	if prior == nil || posterior == nil {
		return nil, fmt.Errorf("invalid ensemble supplied")
	}

	rp, _ := prior.Dims()
	ra, _ := posterior.Dims()
	if rp != 2 || ra != 2 {
		return nil, fmt.Errorf("invalid ensemble dimensions")
	}

	p := plot.New()

	p.Title.Text = "Analysis"
	p.X.Label.Text = "X1"
	p.Y.Label.Text = "X2"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	// Make a scatter plotter for the prior ensemble
	priorScatter, err := plotter.NewScatter(makePoints(prior))
	if err != nil {
		return nil, err
	}
	priorScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	priorScatter.Shape = draw.PyramidGlyph{}
	priorScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(priorScatter)
	p.Legend.Add("prior", priorScatter)

	// Make a scatter plotter for the posterior ensemble
	postScatter, err := plotter.NewScatter(makePoints(posterior))
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	postScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	postScatter.Shape = draw.CrossGlyph{}
	postScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(postScatter)
	p.Legend.Add("posterior", postScatter)

	// Mark the observed value of the first state variable
	obsLine, err := plotter.NewLine(plotter.XYs{
		{X: obs, Y: floats.Min(posterior.RawRowView(1))},
		{X: obs, Y: floats.Max(posterior.RawRowView(1))},
	})
	if err != nil {
		return nil, err
	}
	obsLine.LineStyle.Color = color.RGBA{R: 169, G: 169, B: 169}

	p.Add(obsLine)
	p.Legend.Add("observation", obsLine)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	_, cols := m.Dims()
	points := make(plotter.XYs, cols)
	for j := 0; j < cols; j++ {
		points[j].X = m.At(0, j)
		points[j].Y = m.At(1, j)
	}

	return points
}
