package orchestration

import (
	"fmt"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/projectconfig"
	"github.com/cdmetadl/cdscore/internal/statistics"
	"github.com/cdmetadl/cdscore/internal/workspace"
)

// OptionsFromConfig builds pipeline options from a loaded project config and
// the already resolved official metric, which should come from cfg.Registry
// so that its scorer uses the configured class set.
func OptionsFromConfig(cfg *projectconfig.ProjectConfig, sel metrics.Selection) (Options, error) {
	interval, err := statistics.ParseMethod(cfg.Report.Interval)
	if err != nil {
		return Options{}, err
	}
	if !(cfg.Report.Confidence > 0 && cfg.Report.Confidence < 1) {
		return Options{}, fmt.Errorf("confidence level must be in (0, 1), got %v", cfg.Report.Confidence)
	}
	if cfg.Scoring.Workers < 1 {
		return Options{}, fmt.Errorf("workers must be at least 1, got %d", cfg.Scoring.Workers)
	}
	paths := cfg.ResolvedPaths()
	if err := workspace.CheckOutputDir(paths.Output, paths.Reference, paths.Predictions, cfg.Dir); err != nil {
		return Options{}, err
	}

	opts := Options{
		ReferenceDir:   paths.Reference,
		PredictionsDir: paths.Predictions,
		OutputDir:      paths.Output,
		Selection:      sel,
		Workers:        cfg.Scoring.Workers,
		Confidence:     cfg.Report.Confidence,
		Interval:       interval,
		Histograms:     cfg.Report.Histograms == nil || *cfg.Report.Histograms,
		Heatmaps:       cfg.Report.Heatmaps == nil || *cfg.Report.Heatmaps,
		Title:          cfg.Report.Title,
	}
	if cfg.Report.BootstrapSeed != nil {
		opts.BootstrapSeed = *cfg.Report.BootstrapSeed
	}
	return opts, nil
}
