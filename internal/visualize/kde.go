package visualize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot/plotter"
)

const (
	kdeGridSize = 200
	kdeCut      = 3
)

// gaussianKDE evaluates a Gaussian kernel density estimate of scores on an
// evenly spaced grid reaching kdeCut bandwidths past the data. The bandwidth
// follows Scott's rule. It returns nil when the sample has no spread.
func gaussianKDE(scores []float64) plotter.XYs {
	n := len(scores)
	if n < 2 {
		return nil
	}
	std := stat.StdDev(scores, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	bw := std * math.Pow(float64(n), -0.2)

	kernels := make([]distuv.Normal, n)
	for i, s := range scores {
		kernels[i] = distuv.Normal{Mu: s, Sigma: bw}
	}

	xs := floats.Span(make([]float64, kdeGridSize), floats.Min(scores)-kdeCut*bw, floats.Max(scores)+kdeCut*bw)
	xys := make(plotter.XYs, kdeGridSize)
	for i, x := range xs {
		d := 0.0
		for _, k := range kernels {
			d += k.Prob(x)
		}
		xys[i] = plotter.XY{X: x, Y: d / float64(n)}
	}
	return xys
}
