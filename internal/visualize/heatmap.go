package visualize

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// HeatmapBins is the number of shared bins of a heatmap.
const HeatmapBins = 10

var (
	errNoScores = errors.New("no scores to plot")
	errNoGroups = errors.New("no groups to plot")
)

// HeatmapGrid holds the binned counts behind a heatmap.
type HeatmapGrid struct {
	// Edges are the HeatmapBins+1 bin edges shared by every row.
	Edges []float64
	// Rows[i] holds the per-bin counts of Keys[i].
	Rows   [][]float64
	Keys   []string
	Labels []string
}

// BinGroups computes one shared set of bin edges spanning the global minimum
// and maximum across groups and counts every group's scores into it. Bins are
// half open except the last, which includes the maximum. A missing or empty
// group yields a row of zeros. When every score is identical the range is
// widened by 0.5 on both sides.
func BinGroups(groups map[string][]float64, keys, labels []string) (*HeatmapGrid, error) {
	const op = "create_heatmap"
	if len(keys) == 0 {
		return nil, models.NewComputationError(op, errNoGroups)
	}
	if labels == nil {
		labels = keys
	}
	if len(labels) != len(keys) {
		return nil, fmt.Errorf("%s: %d y tick labels for %d groups", op, len(labels), len(keys))
	}

	minimum, maximum := math.Inf(1), math.Inf(-1)
	for _, k := range keys {
		scores := groups[k]
		if len(scores) == 0 {
			continue
		}
		if err := checkFinite(op, scores); err != nil {
			return nil, err
		}
		minimum = math.Min(minimum, floats.Min(scores))
		maximum = math.Max(maximum, floats.Max(scores))
	}
	if minimum > maximum {
		return nil, models.NewComputationError(op,
			fmt.Errorf("%w: bin range [%v, %v] is inverted", errNoScores, minimum, maximum))
	}
	if minimum == maximum {
		minimum -= 0.5
		maximum += 0.5
	}

	edges := floats.Span(make([]float64, HeatmapBins+1), minimum, maximum)
	edges[HeatmapBins] = maximum

	// The last divider sits just above the maximum so it lands in the last bin.
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[HeatmapBins] = math.Nextafter(maximum, math.Inf(1))

	grid := &HeatmapGrid{
		Edges:  edges,
		Rows:   make([][]float64, len(keys)),
		Keys:   append([]string(nil), keys...),
		Labels: append([]string(nil), labels...),
	}
	for i, k := range keys {
		sorted := append([]float64(nil), groups[k]...)
		sort.Float64s(sorted)
		grid.Rows[i] = stat.Histogram(nil, dividers, sorted, nil)
	}
	return grid, nil
}

// Heatmap renders one row of bin counts per group, in the order of keys from
// top to bottom, labelled with yticks. The x axis carries the shared bin edges
// rounded to two decimals. The PNG is written to path and returned base64
// encoded inside the artifact.
func Heatmap(groups map[string][]float64, keys, yticks []string, metricName, title, path string) (*models.VisualizationArtifact, error) {
	grid, err := BinGroups(groups, keys, yticks)
	if err != nil {
		return nil, err
	}

	p := newPlot(metricName, title)

	hm := plotter.NewHeatMap(heatGrid{grid}, blues(256))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm, cellBorders{cols: HeatmapBins, rows: len(grid.Rows)})

	p.X.Min, p.X.Max = 0, HeatmapBins
	p.Y.Min, p.Y.Max = 0, float64(len(grid.Rows))
	p.X.Tick.Marker = edgeTicks(grid.Edges)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Y.Tick.Marker = rowTicks(grid.Labels)

	written, data, err := save(p, path)
	if err != nil {
		return nil, err
	}
	return &models.VisualizationArtifact{
		Kind:   models.ArtifactHeatmap,
		Metric: metricName,
		Title:  title,
		Path:   written,
		Groups: grid.Keys,
		Data:   data,
	}, nil
}

// heatGrid adapts a HeatmapGrid to plotter.GridXYZ. Cell (c, r) is centred on
// (c+0.5, r+0.5) and row 0 of the grid is drawn at the top.
type heatGrid struct {
	g *HeatmapGrid
}

func (h heatGrid) Dims() (c, r int) {
	return len(h.g.Edges) - 1, len(h.g.Rows)
}

func (h heatGrid) Z(c, r int) float64 {
	return h.g.Rows[len(h.g.Rows)-1-r][c]
}

func (h heatGrid) X(c int) float64 {
	return float64(c) + 0.5
}

func (h heatGrid) Y(r int) float64 {
	return float64(r) + 0.5
}

func edgeTicks(edges []float64) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(edges))
	for i, e := range edges {
		ticks[i] = plot.Tick{
			Value: float64(i),
			Label: strconv.FormatFloat(math.Round(e*100)/100, 'f', -1, 64),
		}
	}
	return ticks
}

func rowTicks(labels []string) plot.ConstantTicks {
	n := len(labels)
	ticks := make(plot.ConstantTicks, n)
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(n-1-i) + 0.5, Label: l}
	}
	return ticks
}

// cellBorders separates heatmap cells with thin white lines.
type cellBorders struct {
	cols, rows int
}

func (b cellBorders) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	sty := draw.LineStyle{Color: whiteColor, Width: vg.Points(0.2)}
	for i := 0; i <= b.cols; i++ {
		x := trX(float64(i))
		c.StrokeLine2(sty, x, trY(0), x, trY(float64(b.rows)))
	}
	for j := 0; j <= b.rows; j++ {
		y := trY(float64(j))
		c.StrokeLine2(sty, trX(0), y, trX(float64(b.cols)), y)
	}
}
