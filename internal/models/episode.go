package models

// LabelArray holds the true class index of every example in one episode.
type LabelArray []int

// PredictionMatrix holds one score vector per example, one entry per class.
type PredictionMatrix [][]float64

// Rows returns the number of examples in the matrix.
func (m PredictionMatrix) Rows() int {
	return len(m)
}

// Episode pairs the labels and predictions of one evaluation instance.
type Episode struct {
	Name        string           `json:"name"`
	Group       string           `json:"group,omitempty"`
	Labels      LabelArray       `json:"-"`
	Predictions PredictionMatrix `json:"-"`
}

// Fixed metric keys of a ScoreResult.
const (
	KeyAccuracy       = "Accuracy"
	KeyMacroF1Score   = "Macro F1 Score"
	KeyMacroPrecision = "Macro Precision"
	KeyMacroRecall    = "Macro Recall"
)

// ScoreResult maps a metric label to its value for a single episode.
type ScoreResult map[string]float64

// ScoreCollection is the ordered list of one metric's scores across episodes.
type ScoreCollection []float64

// AggregateStatistic summarizes a ScoreCollection. Mean and HalfWidth are nil
// when the collection is empty.
type AggregateStatistic struct {
	N          int      `json:"n"`
	Mean       *float64 `json:"mean"`
	HalfWidth  *float64 `json:"half_width"`
	Confidence float64  `json:"confidence"`
}

// Defined reports whether the statistic carries a mean.
func (a AggregateStatistic) Defined() bool {
	return a.Mean != nil && a.HalfWidth != nil
}

// Bounds returns the interval (mean - half width, mean + half width).
// Both are zero when the statistic is undefined.
func (a AggregateStatistic) Bounds() (float64, float64) {
	if !a.Defined() {
		return 0, 0
	}
	return *a.Mean - *a.HalfWidth, *a.Mean + *a.HalfWidth
}

// ArtifactKind identifies how a VisualizationArtifact was rendered.
type ArtifactKind string

const (
	ArtifactHistogram ArtifactKind = "histogram"
	ArtifactHeatmap   ArtifactKind = "heatmap"
)

// VisualizationArtifact is a rendered PNG encoded as base64 text.
type VisualizationArtifact struct {
	Kind   ArtifactKind `json:"kind"`
	Metric string       `json:"metric"`
	Title  string       `json:"title"`
	Path   string       `json:"path"`
	Groups []string     `json:"groups,omitempty"`
	Data   string       `json:"-"`
}
