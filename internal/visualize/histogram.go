package visualize

import (
	"image/color"
	"math"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// HistogramBins is the number of frequency bins of a histogram.
const HistogramBins = 40

var (
	histFill  = color.RGBA{R: 31, G: 119, B: 180, A: 191}
	kdeStroke = color.RGBA{R: 21, G: 83, B: 126, A: 255}
)

// Histogram renders a HistogramBins-bin frequency histogram of scores with a
// kernel density estimate overlaid on a secondary density axis, writes it as
// a PNG to path and returns the artifact holding the base64 encoded file.
//
// The x axis is clamped to the data range unless every score is (nearly) the
// same, in which case the default range is kept to avoid a zero-width axis.
func Histogram(scores []float64, metricName, title, path string) (*models.VisualizationArtifact, error) {
	const op = "create_histogram"
	if len(scores) == 0 {
		return nil, models.NewComputationError(op, errNoScores)
	}
	if err := checkFinite(op, scores); err != nil {
		return nil, err
	}

	p := newPlot(metricName, title)
	p.Y.Label.Text = "Frequency"

	hist, err := plotter.NewHist(plotter.Values(scores), HistogramBins)
	if err != nil {
		return nil, models.NewComputationError(op, err)
	}
	hist.FillColor = histFill
	hist.LineStyle.Color = color.White
	hist.LineStyle.Width = vg.Points(0.5)
	p.Add(hist)

	if density := gaussianKDE(scores); density != nil {
		maxCount := 0.0
		for _, b := range hist.Bins {
			maxCount = math.Max(maxCount, b.Weight)
		}
		maxDensity := 0.0
		for _, xy := range density {
			maxDensity = math.Max(maxDensity, xy.Y)
		}
		scale := maxCount / maxDensity

		scaled := make(plotter.XYs, len(density))
		for i, xy := range density {
			scaled[i] = plotter.XY{X: xy.X, Y: xy.Y * scale}
		}
		line, err := plotter.NewLine(scaled)
		if err != nil {
			return nil, models.NewComputationError(op, err)
		}
		line.Color = kdeStroke
		line.Width = vg.Points(1.5)
		p.Add(line, densityAxis{scale: scale, max: maxDensity, label: "Density"})
	}

	xmin, xmax := floats.Min(scores), floats.Max(scores)
	if !scalar.EqualWithinAbsOrRel(xmin, xmax, 1e-8, 1e-5) {
		p.X.Min, p.X.Max = xmin, xmax
	}

	written, data, err := save(p, path)
	if err != nil {
		return nil, err
	}
	return &models.VisualizationArtifact{
		Kind:   models.ArtifactHistogram,
		Metric: metricName,
		Title:  title,
		Path:   written,
		Data:   data,
	}, nil
}

// densityAxis draws a secondary y axis along the right edge of the data area
// labelling density values that were plotted in frequency units.
type densityAxis struct {
	scale float64 // frequency units per density unit
	max   float64
	label string
}

func (a densityAxis) Plot(c draw.Canvas, p *plot.Plot) {
	_, trY := p.Transforms(&c)
	x := c.Max.X
	c.StrokeLine2(p.Y.LineStyle, x, c.Min.Y, x, c.Max.Y)

	sty := p.Y.Tick.Label
	sty.XAlign = draw.XRight
	sty.YAlign = draw.YCenter
	pad := vg.Points(2)

	widest := vg.Length(0)
	for _, t := range (plot.DefaultTicks{}).Ticks(0, a.max) {
		if t.Label == "" {
			continue
		}
		y := trY(t.Value * a.scale)
		if y < c.Min.Y || y > c.Max.Y {
			continue
		}
		c.StrokeLine2(p.Y.Tick.LineStyle, x-p.Y.Tick.Length, y, x, y)
		c.FillText(sty, vg.Point{X: x - p.Y.Tick.Length - pad, Y: y}, t.Label)
		if w := sty.Width(t.Label); w > widest {
			widest = w
		}
	}

	lsty := p.Y.Label.TextStyle
	lsty.Rotation = math.Pi / 2
	lsty.XAlign = draw.XCenter
	lsty.YAlign = draw.YBottom
	c.FillText(lsty, vg.Point{X: x - p.Y.Tick.Length - 2*pad - widest, Y: (c.Min.Y + c.Max.Y) / 2}, a.label)
}
