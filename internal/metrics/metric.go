// Package metrics scores one episode's predictions against its true labels.
package metrics

import (
	"fmt"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
)

// Metric identifies one of the implemented classification metrics.
type Metric int

const (
	MetricAccuracy Metric = iota
	MetricMacroF1Score
	MetricMacroPrecision
	MetricMacroRecall
)

// All lists every implemented metric in report order.
var All = []Metric{
	MetricAccuracy,
	MetricMacroF1Score,
	MetricMacroPrecision,
	MetricMacroRecall,
}

var metricNames = map[Metric]string{
	MetricAccuracy:       "accuracy",
	MetricMacroF1Score:   "macro_f1_score",
	MetricMacroPrecision: "macro_precision",
	MetricMacroRecall:    "macro_recall",
}

// Name returns the configuration name of m, e.g. "macro_f1_score".
func (m Metric) Name() string {
	if n, ok := metricNames[m]; ok {
		return n
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

var metricLabels = map[Metric]string{
	MetricAccuracy:       models.KeyAccuracy,
	MetricMacroF1Score:   models.KeyMacroF1Score,
	MetricMacroPrecision: models.KeyMacroPrecision,
	MetricMacroRecall:    models.KeyMacroRecall,
}

// Label returns the report label of m, which is also its key in a
// models.ScoreResult: the name with underscores replaced by spaces and
// title-cased, e.g. "Macro F1 Score".
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return m.Name()
}

func (m Metric) String() string {
	return m.Name()
}

// ScoreFunc computes a single metric for one episode.
type ScoreFunc func(yTrue models.LabelArray, yPred models.PredictionMatrix) (float64, error)

// Selection is a resolved metric together with its report label and
// implementation. Scorer is the scorer Score is bound to; it computes the
// remaining metrics with the same class set.
type Selection struct {
	Metric Metric
	Label  string
	Score  ScoreFunc
	Scorer Scorer
}

// Registry maps configuration names to metrics. It is immutable once built
// and safe to share.
type Registry struct {
	scorer Scorer
	byName map[string]Metric
}

// NewRegistry builds a Registry whose score functions use scorer.
func NewRegistry(scorer Scorer) Registry {
	byName := make(map[string]Metric, len(All))
	for _, m := range All {
		byName[m.Name()] = m
	}
	return Registry{scorer: scorer, byName: byName}
}

// Names returns the configuration names of every metric in report order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(All))
	for _, m := range All {
		names = append(names, m.Name())
	}
	return names
}

// Resolve looks name up exactly. Unknown names fail with a
// *models.ConfigurationError; there is no fallback metric.
func (r Registry) Resolve(name string) (Metric, error) {
	m, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return 0, &models.ConfigurationError{Name: name, Known: r.Names()}
	}
	return m, nil
}

// Select resolves name and binds it to the registry's scorer.
func (r Registry) Select(name string) (Selection, error) {
	m, err := r.Resolve(name)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Metric: m, Label: m.Label(), Score: r.scorer.Func(m), Scorer: r.scorer}, nil
}
