package statistics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the confidence level used when none is configured.
const DefaultConfidence = 0.95

// Method selects how the confidence half-width is computed.
type Method string

const (
	MethodT         Method = "t"
	MethodBootstrap Method = "bootstrap"
)

// ParseMethod converts a config value to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodT:
		return MethodT, nil
	case MethodBootstrap:
		return MethodBootstrap, nil
	default:
		return MethodT, fmt.Errorf("invalid interval method %q: must be t or bootstrap", s)
	}
}

// MeanConfidenceInterval returns the mean of scores and the half-width of its
// two-sided confidence interval at the given level, computed as the standard
// error of the mean times the Student's t quantile at (1+confidence)/2 with
// n-1 degrees of freedom.
//
// An empty collection yields an undefined statistic and a single score yields
// a half-width of exactly 0. Scores are sorted before reduction so the result
// does not depend on accumulation order.
func MeanConfidenceInterval(scores []float64, confidence float64) (models.AggregateStatistic, error) {
	sorted, err := prepare(scores, confidence)
	if err != nil {
		return models.AggregateStatistic{}, err
	}
	agg := models.AggregateStatistic{N: len(sorted), Confidence: confidence}
	switch len(sorted) {
	case 0:
		return agg, nil
	case 1:
		return withValues(agg, sorted[0], 0), nil
	}

	n := float64(len(sorted))
	mean, std := stat.MeanStdDev(sorted, nil)
	se := std / math.Sqrt(n)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	halfWidth := se * t.Quantile((1+confidence)/2)
	if math.IsNaN(halfWidth) || math.IsInf(halfWidth, 0) {
		return models.AggregateStatistic{}, models.NewComputationError("mean_confidence_interval",
			fmt.Errorf("non-finite half-width for %d scores", len(sorted)))
	}
	return withValues(agg, mean, halfWidth), nil
}

// Aggregate dispatches to the interval method m. seed only applies to
// MethodBootstrap.
func Aggregate(m Method, scores []float64, confidence float64, seed int64) (models.AggregateStatistic, error) {
	switch m {
	case MethodT, "":
		return MeanConfidenceInterval(scores, confidence)
	case MethodBootstrap:
		return BootstrapIntervalWithSeed(scores, confidence, seed)
	default:
		return models.AggregateStatistic{}, fmt.Errorf("unknown interval method %q", m)
	}
}

var errNonFinite = errors.New("score is not finite")

// prepare validates the inputs and returns a sorted copy of scores.
func prepare(scores []float64, confidence float64) ([]float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return nil, fmt.Errorf("confidence level must be in (0, 1), got %v", confidence)
	}
	sorted := make([]float64, len(scores))
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, models.NewComputationError("mean_confidence_interval",
				fmt.Errorf("index %d: %w", i, errNonFinite))
		}
		sorted[i] = v
	}
	sort.Float64s(sorted)
	return sorted, nil
}

func withValues(agg models.AggregateStatistic, mean, halfWidth float64) models.AggregateStatistic {
	agg.Mean = &mean
	agg.HalfWidth = &halfWidth
	return agg
}
