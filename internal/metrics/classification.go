package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/gonum/floats"
)

// ClassSet selects which classes take part in macro averaging.
type ClassSet int

const (
	// ClassesTrue averages over the classes present in the true labels.
	ClassesTrue ClassSet = iota
	// ClassesUnion averages over the union of true and predicted classes,
	// matching scikit-learn's macro average.
	ClassesUnion
)

// ParseClassSet converts a config value ("true" or "union") to a ClassSet.
func ParseClassSet(s string) (ClassSet, error) {
	switch s {
	case "", "true":
		return ClassesTrue, nil
	case "union":
		return ClassesUnion, nil
	default:
		return ClassesTrue, fmt.Errorf("invalid class set %q: must be true or union", s)
	}
}

func (c ClassSet) String() string {
	if c == ClassesUnion {
		return "union"
	}
	return "true"
}

var (
	errEmptyEpisode = errors.New("episode has no examples")
	errEmptyRow     = errors.New("prediction row has no classes")
	errNegative     = errors.New("label is negative")
)

// ArgMax decodes every prediction row to the index of its largest entry.
// Ties resolve to the first occurrence; NaN entries are ignored.
func ArgMax(yPred models.PredictionMatrix) (models.LabelArray, error) {
	out := make(models.LabelArray, len(yPred))
	for i, row := range yPred {
		if len(row) == 0 {
			return nil, fmt.Errorf("row %d: %w", i, errEmptyRow)
		}
		out[i] = floats.MaxIdx(row)
	}
	return out, nil
}

// classCounts holds per-class true positive, false positive and false
// negative counts.
type classCounts struct {
	TP, FP, FN int
}

// confusion tallies classCounts for every class of the selected ClassSet.
type confusion struct {
	classes []int
	counts  map[int]*classCounts
	correct int
	total   int
}

func newConfusion(yTrue, yPred models.LabelArray, set ClassSet) *confusion {
	c := &confusion{
		counts: make(map[int]*classCounts),
		total:  len(yTrue),
	}
	for _, t := range yTrue {
		c.class(t)
	}
	if set == ClassesUnion {
		for _, p := range yPred {
			c.class(p)
		}
	}
	sort.Ints(c.classes)

	for i, t := range yTrue {
		p := yPred[i]
		if t == p {
			c.correct++
			c.counts[t].TP++
			continue
		}
		c.counts[t].FN++
		if pc, ok := c.counts[p]; ok {
			pc.FP++
		}
	}
	return c
}

func (c *confusion) class(label int) {
	if _, ok := c.counts[label]; ok {
		return
	}
	c.counts[label] = &classCounts{}
	c.classes = append(c.classes, label)
}

func (c *confusion) accuracy() float64 {
	return safeDivide(float64(c.correct), float64(c.total))
}

// macro averages fn over every class with equal weight.
func (c *confusion) macro(fn func(classCounts) float64) float64 {
	if len(c.classes) == 0 {
		return 0
	}
	sum := 0.0
	for _, k := range c.classes {
		sum += fn(*c.counts[k])
	}
	return sum / float64(len(c.classes))
}

func precision(k classCounts) float64 {
	return safeDivide(float64(k.TP), float64(k.TP+k.FP))
}

func recall(k classCounts) float64 {
	return safeDivide(float64(k.TP), float64(k.TP+k.FN))
}

func f1(k classCounts) float64 {
	return safeDivide(float64(2*k.TP), float64(2*k.TP+k.FP+k.FN))
}

func safeDivide(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return num / den
}

// checkUnit rejects values a metric can never legitimately produce.
func checkUnit(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("value %v outside [0, 1]", v)
	}
	return nil
}
