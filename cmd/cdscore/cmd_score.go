package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/cdmetadl/cdscore/internal/orchestration"
	"github.com/cdmetadl/cdscore/internal/projectconfig"
	"github.com/cdmetadl/cdscore/internal/reporting"
	"github.com/cdmetadl/cdscore/internal/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// scoreFlags holds the command-line overrides of `cdscore score`. Zero values
// mean "use the configuration".
type scoreFlags struct {
	configPath  string
	reference   string
	predictions string
	output      string
	metric      *metricValue
	classes     string
	workers     int
	confidence  float64
	interval    string
	seed        int64
	noHist      bool
	noHeatmap   bool
	junit       bool
	interpret   bool
	format      string
	episodes    []string
}

func newScoreCommand() *cobra.Command {
	f := &scoreFlags{metric: newMetricValue(metrics.NewRegistry(metrics.Scorer{}))}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a submission",
		Long: `Score the predictions of every episode against the reference labels.

Episodes are discovered by pairing <name>.labels files in the reference
directory with <name>.predictions files at the same relative location in the
predictions directory. First-level subdirectories are datasets.

Settings come from .cdscore.yaml (searched from the working directory
upwards) and are overridden by flags. The official metric is taken from
--metric, then scoring.metric, then the first line of the selection file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file (default: .cdscore.yaml found from the working directory)")
	cmd.Flags().StringVar(&f.reference, "reference", "", "Directory with the reference labels")
	cmd.Flags().StringVar(&f.predictions, "predictions", "", "Directory with the submission predictions")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (recreated on every run)")
	cmd.Flags().Var(f.metric, "metric", "Official metric: accuracy, macro_f1_score, macro_precision or macro_recall")
	cmd.Flags().StringVar(&f.classes, "classes", "", "Classes averaged by macro metrics: true or union")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Number of episodes scored concurrently")
	cmd.Flags().Float64Var(&f.confidence, "confidence", 0, "Confidence level of the intervals, in (0, 1)")
	cmd.Flags().StringVar(&f.interval, "interval", "", "Interval method: t or bootstrap")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Bootstrap seed")
	cmd.Flags().BoolVar(&f.noHist, "no-histograms", false, "Do not render histograms")
	cmd.Flags().BoolVar(&f.noHeatmap, "no-heatmaps", false, "Do not render heatmaps")
	cmd.Flags().BoolVar(&f.junit, "junit", false, "Also write junit.xml with one test case per episode")
	cmd.Flags().BoolVar(&f.interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&f.format, "format", "table", "Output format: table, json")
	cmd.Flags().StringArrayVar(&f.episodes, "episode", nil, "Only score episodes matching a glob on name, dataset or dataset/name (can be repeated)")

	return cmd
}

func runScore(cmd *cobra.Command, f *scoreFlags) error {
	if f.format != "table" && f.format != "json" {
		return fmt.Errorf("invalid --format %q: must be table or json", f.format)
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	applyScoreFlags(cmd, cfg, f)

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	sel, err := cfg.SelectMetric(reg, f.metric.String())
	if err != nil {
		return err
	}
	opts, err := orchestration.OptionsFromConfig(cfg, sel)
	if err != nil {
		return err
	}
	opts.JUnit = f.junit
	opts.Filters = f.episodes

	pipeline := orchestration.NewPipeline(opts)
	var stopSpinner func()
	if isTerminal(cmd.ErrOrStderr()) {
		var listener orchestration.ProgressListener
		listener, stopSpinner = progressSpinner(cmd.ErrOrStderr())
		pipeline.OnProgress(listener)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	summary, runErr := pipeline.Run(ctx)
	if stopSpinner != nil {
		stopSpinner()
	}
	if summary == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if f.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
	} else {
		printSummary(out, summary)
		if f.interpret {
			fmt.Fprintln(out)                                     //nolint:errcheck
			fmt.Fprint(out, reporting.FormatSummaryReport(summary)) //nolint:errcheck
		}
		fmt.Fprintf(out, "\nResults written to: %s\n", opts.OutputDir) //nolint:errcheck
	}
	return runErr
}

// loadConfig reads the explicit config file, or searches from the working
// directory when none was given.
func loadConfig(path string) (*projectconfig.ProjectConfig, error) {
	if path != "" {
		return projectconfig.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return projectconfig.Load(wd)
}

// applyScoreFlags overlays the flags that were set onto cfg. Paths given on
// the command line are relative to the working directory, not the config.
func applyScoreFlags(cmd *cobra.Command, cfg *projectconfig.ProjectConfig, f *scoreFlags) {
	changed := cmd.Flags().Changed
	if f.reference != "" {
		cfg.Paths.Reference = absPath(f.reference)
	}
	if f.predictions != "" {
		cfg.Paths.Predictions = absPath(f.predictions)
	}
	if f.output != "" {
		cfg.Paths.Output = absPath(f.output)
	}
	if f.classes != "" {
		cfg.Scoring.Classes = f.classes
	}
	if f.workers > 0 {
		cfg.Scoring.Workers = f.workers
	}
	if changed("confidence") {
		cfg.Report.Confidence = f.confidence
	}
	if f.interval != "" {
		cfg.Report.Interval = f.interval
	}
	if changed("seed") {
		seed := f.seed
		cfg.Report.BootstrapSeed = &seed
	}
	if f.noHist {
		off := false
		cfg.Report.Histograms = &off
	}
	if f.noHeatmap {
		off := false
		cfg.Report.Heatmaps = &off
	}
}

// printSummary prints the overall statistics followed by one row per dataset.
func printSummary(w io.Writer, s *models.RunSummary) {
	order := reporting.MetricOrder(s)

	fmt.Fprintf(w, "Official score: %s\n", s.OfficialScore)                                           //nolint:errcheck
	fmt.Fprintf(w, "Episodes: %d scored, %d failed\n\n", s.Scored(), len(s.Failed)) //nolint:errcheck

	overall := &table{header: []string{"Metric", "Mean ± CI", "N"}}
	for _, label := range order {
		st := s.Overall[label]
		overall.add(label, reporting.FormatStatistic(st), fmt.Sprint(st.N))
	}
	overall.write(w)

	if len(s.Groups) > 1 {
		fmt.Fprintln(w) //nolint:errcheck
		byGroup := &table{header: append([]string{"Dataset", "Episodes"}, order...)}
		for _, g := range s.Groups {
			row := []string{truncateName(g.Name, 32), fmt.Sprint(g.Episodes)}
			for _, label := range order {
				row = append(row, reporting.FormatStatistic(g.Stats[label]))
			}
			byGroup.add(row...)
		}
		byGroup.write(w)
	}
}

// progressSpinner shows scoring and rendering progress on a terminal. The
// returned stop function clears the line and is safe to call more than once.
func progressSpinner(w io.Writer) (orchestration.ProgressListener, func()) {
	sp := spinner.Start(w, "Discovering episodes")
	listener := func(e orchestration.ProgressEvent) {
		switch e.EventType {
		case orchestration.EventRunStart:
			sp.Update(fmt.Sprintf("Scoring episodes 0/%d", e.Total))
		case orchestration.EventEpisodeComplete:
			sp.Update(fmt.Sprintf("Scoring episodes %d/%d", e.Num, e.Total))
		case orchestration.EventFigureComplete:
			sp.Update(fmt.Sprintf("Rendering figures %d/%d", e.Num, e.Total))
		case orchestration.EventRunComplete:
			sp.Stop()
		}
	}
	return listener, sp.Stop
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// absPath anchors a command-line path at the working directory.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
