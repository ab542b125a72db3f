package projectconfig

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
)

var errEmptySelection = errors.New("selection file is empty")

// LoadSelection reads the metric name from the first line of the selection
// file at path, with surrounding whitespace removed.
func LoadSelection(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &models.ResourceError{Op: "read metric selection", Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", &models.ResourceError{Op: "read metric selection", Path: path, Err: err}
		}
		return "", &models.ResourceError{Op: "read metric selection", Path: path, Err: errEmptySelection}
	}
	return strings.TrimSpace(sc.Text()), nil
}

// SelectMetric picks the official metric. An explicit override wins, then
// scoring.metric, then the first line of the selection file. The name is
// resolved through reg, so an unknown name fails with a
// *models.ConfigurationError.
func (cfg *ProjectConfig) SelectMetric(reg metrics.Registry, override string) (metrics.Selection, error) {
	name := override
	if name == "" {
		name = cfg.Scoring.Metric
	}
	if name == "" {
		var err error
		if name, err = LoadSelection(cfg.SelectionPath()); err != nil {
			return metrics.Selection{}, err
		}
	}
	return reg.Select(name)
}

// Registry returns a metric registry whose scorer averages over the
// configured class set.
func (cfg *ProjectConfig) Registry() (metrics.Registry, error) {
	classes, err := metrics.ParseClassSet(cfg.Scoring.Classes)
	if err != nil {
		return metrics.Registry{}, err
	}
	return metrics.NewRegistry(metrics.Scorer{Classes: classes}), nil
}
