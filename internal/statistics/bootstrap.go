package statistics

import (
	"math/rand"
	"sort"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/gonum/stat"
)

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapIntervalWithSeed is like MeanConfidenceInterval but derives the
// half-width from a percentile bootstrap of the mean instead of the t
// distribution. A negative seed uses a non-deterministic source.
// The half-width is half the distance between the lower and upper percentiles.
func BootstrapIntervalWithSeed(scores []float64, confidence float64, seed int64) (models.AggregateStatistic, error) {
	sorted, err := prepare(scores, confidence)
	if err != nil {
		return models.AggregateStatistic{}, err
	}
	agg := models.AggregateStatistic{N: len(sorted), Confidence: confidence}
	n := len(sorted)
	switch n {
	case 0:
		return agg, nil
	case 1:
		return withValues(agg, sorted[0], 0), nil
	}

	var rng *rand.Rand
	if seed >= 0 {
		rng = rand.New(rand.NewSource(seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	bootMeans := make([]float64, DefaultBootstrapIterations)
	sample := make([]float64, n)
	for i := range bootMeans {
		for j := range sample {
			sample[j] = sorted[rng.Intn(n)]
		}
		bootMeans[i] = stat.Mean(sample, nil)
	}
	sort.Float64s(bootMeans)

	alpha := 1.0 - confidence
	lo := stat.Quantile(alpha/2, stat.Empirical, bootMeans, nil)
	hi := stat.Quantile(1-alpha/2, stat.Empirical, bootMeans, nil)
	return withValues(agg, stat.Mean(sorted, nil), (hi-lo)/2), nil
}
