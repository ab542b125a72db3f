package metrics

import (
	"errors"
	"fmt"

	"github.com/cdmetadl/cdscore/internal/models"
)

// Scorer computes metrics for one episode at a time. The zero value averages
// over the classes present in the true labels.
type Scorer struct {
	Classes ClassSet
}

// Func returns m bound to s as a ScoreFunc.
func (s Scorer) Func(m Metric) ScoreFunc {
	return func(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
		return s.Score(m, yTrue, yPred)
	}
}

// Score decodes yPred with ArgMax and computes m against yTrue.
func (s Scorer) Score(m Metric, yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
	decoded, err := decode(yTrue, yPred)
	if err != nil {
		return 0, models.NewComputationError(m.Name(), err)
	}
	return s.fromDecoded(m, newConfusion(yTrue, decoded, s.Classes))
}

// ComputeAll computes every metric for one episode. Each metric is attempted
// even when another fails; failed metrics are left out of the result and
// reported through the joined error.
func (s Scorer) ComputeAll(yTrue models.LabelArray, yPred models.PredictionMatrix) (models.ScoreResult, error) {
	decoded, err := decode(yTrue, yPred)
	if err != nil {
		return nil, models.NewComputationError("compute_all_scores", err)
	}
	c := newConfusion(yTrue, decoded, s.Classes)

	result := make(models.ScoreResult, len(All))
	var errs []error
	for _, m := range All {
		v, err := s.fromDecoded(m, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result[m.Label()] = v
	}
	return result, errors.Join(errs...)
}

func (s Scorer) fromDecoded(m Metric, c *confusion) (float64, error) {
	var v float64
	switch m {
	case MetricAccuracy:
		v = c.accuracy()
	case MetricMacroF1Score:
		v = c.macro(f1)
	case MetricMacroPrecision:
		v = c.macro(precision)
	case MetricMacroRecall:
		v = c.macro(recall)
	default:
		return 0, &models.ConfigurationError{Name: m.Name()}
	}
	if err := checkUnit(v); err != nil {
		return 0, models.NewComputationError(m.Name(), err)
	}
	return v, nil
}

// decode validates the episode shape and labels and returns the arg-max
// labels.
func decode(yTrue models.LabelArray, yPred models.PredictionMatrix) (models.LabelArray, error) {
	if len(yTrue) == 0 {
		return nil, errEmptyEpisode
	}
	for i, l := range yTrue {
		if l < 0 {
			return nil, fmt.Errorf("index %d: %w: %d", i, errNegative, l)
		}
	}
	if len(yTrue) != yPred.Rows() {
		return nil, fmt.Errorf("found input variables with inconsistent numbers of samples: [%d, %d]",
			len(yTrue), yPred.Rows())
	}
	return ArgMax(yPred)
}

// Accuracy returns the fraction of examples whose arg-max prediction equals
// the true label.
func Accuracy(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
	return Scorer{}.Score(MetricAccuracy, yTrue, yPred)
}

// MacroF1Score returns the unweighted mean of per-class F1 scores.
func MacroF1Score(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
	return Scorer{}.Score(MetricMacroF1Score, yTrue, yPred)
}

// MacroPrecision returns the unweighted mean of per-class precision.
func MacroPrecision(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
	return Scorer{}.Score(MetricMacroPrecision, yTrue, yPred)
}

// MacroRecall returns the unweighted mean of per-class recall.
func MacroRecall(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error) {
	return Scorer{}.Score(MetricMacroRecall, yTrue, yPred)
}

// ComputeAll computes every metric with the default Scorer.
func ComputeAll(yTrue models.LabelArray, yPred models.PredictionMatrix) (models.ScoreResult, error) {
	return Scorer{}.ComputeAll(yTrue, yPred)
}
