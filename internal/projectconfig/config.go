// Package projectconfig provides the ProjectConfig struct and loader for
// .cdscore.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdmetadl/cdscore/internal/validation"
	"github.com/cdmetadl/cdscore/internal/workspace"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = ".cdscore.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultReferenceDir   = "reference_data"
	DefaultPredictionsDir = "predictions"
	DefaultOutputDir      = "scoring_output"

	DefaultSelectionFile = "scores.txt"
	DefaultClasses       = "true"
	DefaultWorkers       = 4

	DefaultConfidence    = 0.95
	DefaultInterval      = "t"
	DefaultBootstrapSeed = int64(42)
	DefaultTitle         = "Detailed Results"
)

// PathsConfig holds the input and output directories of a scoring run.
type PathsConfig struct {
	Reference   string `yaml:"reference,omitempty" mapstructure:"reference"`
	Predictions string `yaml:"predictions,omitempty" mapstructure:"predictions"`
	Output      string `yaml:"output,omitempty" mapstructure:"output"`
}

// ScoringConfig selects and parameterizes the metrics.
type ScoringConfig struct {
	// Metric names the official metric. When empty the first line of
	// SelectionFile is used.
	Metric        string `yaml:"metric,omitempty" mapstructure:"metric"`
	SelectionFile string `yaml:"selection_file,omitempty" mapstructure:"selection_file"`
	Classes       string `yaml:"classes,omitempty" mapstructure:"classes"`
	Workers       int    `yaml:"workers,omitempty" mapstructure:"workers"`
}

// ReportConfig holds aggregation and rendering settings.
type ReportConfig struct {
	Confidence    float64 `yaml:"confidence,omitempty" mapstructure:"confidence"`
	Interval      string  `yaml:"interval,omitempty" mapstructure:"interval"`
	BootstrapSeed *int64  `yaml:"bootstrap_seed,omitempty" mapstructure:"bootstrap_seed"`
	Histograms    *bool   `yaml:"histograms,omitempty" mapstructure:"histograms"`
	Heatmaps      *bool   `yaml:"heatmaps,omitempty" mapstructure:"heatmaps"`
	Title         string  `yaml:"title,omitempty" mapstructure:"title"`
}

// ProjectConfig is the top-level configuration loaded from .cdscore.yaml.
type ProjectConfig struct {
	Paths   PathsConfig   `yaml:"paths,omitempty" mapstructure:"paths"`
	Scoring ScoringConfig `yaml:"scoring,omitempty" mapstructure:"scoring"`
	Report  ReportConfig  `yaml:"report,omitempty" mapstructure:"report"`

	// Dir is the directory relative paths are resolved against: the
	// directory holding the loaded file, or the start directory when no
	// file was found.
	Dir string `yaml:"-" mapstructure:"-"`
	// Source is the path of the loaded file, empty when defaults were used.
	Source string `yaml:"-" mapstructure:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Reference:   DefaultReferenceDir,
			Predictions: DefaultPredictionsDir,
			Output:      DefaultOutputDir,
		},
		Scoring: ScoringConfig{
			SelectionFile: DefaultSelectionFile,
			Classes:       DefaultClasses,
			Workers:       DefaultWorkers,
		},
		Report: ReportConfig{
			Confidence:    DefaultConfidence,
			Interval:      DefaultInterval,
			BootstrapSeed: int64Ptr(DefaultBootstrapSeed),
			Histograms:    boolPtr(true),
			Heatmaps:      boolPtr(true),
			Title:         DefaultTitle,
		},
	}
}

// Load finds .cdscore.yaml by walking up from startDir (max 10 levels),
// validates it against the config schema, decodes it, and fills in missing
// fields with defaults. If no config file is found, returns defaults with a
// nil error. Real I/O errors (e.g. permission denied) are returned to the
// caller.
func Load(startDir string) (*ProjectConfig, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", startDir, err)
	}

	cfg := New()
	cfg.Dir = absDir

	path, data, err := findConfigFile(absDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	fileCfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	mergeConfig(cfg, fileCfg)
	cfg.Dir = filepath.Dir(path)
	cfg.Source = path
	return cfg, nil
}

// LoadFile reads the configuration at path without walking up. Unlike Load
// a missing file is an error.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	fileCfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg := New()
	mergeConfig(cfg, fileCfg)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg.Dir = filepath.Dir(path)
	cfg.Source = path
	return cfg, nil
}

// Parse validates a YAML document against the config schema and decodes it.
// Fields absent from the document are left zero.
func Parse(data []byte) (*ProjectConfig, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	fileCfg := &ProjectConfig{}
	if doc == nil {
		return fileCfg, nil
	}
	if errs := validation.ValidateConfig(doc); len(errs) > 0 {
		return nil, &SchemaError{Problems: errs}
	}
	if err := mapstructure.Decode(doc, fileCfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", FileName, err)
	}
	return fileCfg, nil
}

// SchemaError lists every schema violation found in a config file.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ResolvedPaths returns the reference, predictions and output directories
// resolved against cfg.Dir.
func (cfg *ProjectConfig) ResolvedPaths() PathsConfig {
	return PathsConfig{
		Reference:   workspace.ResolvePath(cfg.Paths.Reference, cfg.Dir),
		Predictions: workspace.ResolvePath(cfg.Paths.Predictions, cfg.Dir),
		Output:      workspace.ResolvePath(cfg.Paths.Output, cfg.Dir),
	}
}

// SelectionPath returns the selection file resolved against cfg.Dir.
func (cfg *ProjectConfig) SelectionPath() string {
	return workspace.ResolvePath(cfg.Scoring.SelectionFile, cfg.Dir)
}

// findConfigFile walks up from dir looking for .cdscore.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) (string, []byte, error) {
	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Reference != "" {
		dst.Paths.Reference = src.Paths.Reference
	}
	if src.Paths.Predictions != "" {
		dst.Paths.Predictions = src.Paths.Predictions
	}
	if src.Paths.Output != "" {
		dst.Paths.Output = src.Paths.Output
	}

	// Scoring
	if src.Scoring.Metric != "" {
		dst.Scoring.Metric = src.Scoring.Metric
	}
	if src.Scoring.SelectionFile != "" {
		dst.Scoring.SelectionFile = src.Scoring.SelectionFile
	}
	if src.Scoring.Classes != "" {
		dst.Scoring.Classes = src.Scoring.Classes
	}
	if src.Scoring.Workers != 0 {
		dst.Scoring.Workers = src.Scoring.Workers
	}

	// Report
	if src.Report.Confidence != 0 {
		dst.Report.Confidence = src.Report.Confidence
	}
	if src.Report.Interval != "" {
		dst.Report.Interval = src.Report.Interval
	}
	if src.Report.BootstrapSeed != nil {
		dst.Report.BootstrapSeed = src.Report.BootstrapSeed
	}
	if src.Report.Histograms != nil {
		dst.Report.Histograms = src.Report.Histograms
	}
	if src.Report.Heatmaps != nil {
		dst.Report.Heatmaps = src.Report.Heatmaps
	}
	if src.Report.Title != "" {
		dst.Report.Title = src.Report.Title
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func int64Ptr(v int64) *int64 {
	return &v
}
