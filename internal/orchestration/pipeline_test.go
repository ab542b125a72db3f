package orchestration

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/cdmetadl/cdscore/internal/projectconfig"
	"github.com/cdmetadl/cdscore/internal/reporting"
	"github.com/cdmetadl/cdscore/internal/statistics"
	"github.com/cdmetadl/cdscore/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// episodeFixture writes one episode. pred holds the predicted class of every
// example and is written one-hot over classes columns.
func episodeFixture(t *testing.T, ref, res, group, name string, labels, pred []int, classes int) {
	t.Helper()
	var lb, pb strings.Builder
	for _, l := range labels {
		fmt.Fprintf(&lb, "%d\n", l)
	}
	for _, p := range pred {
		row := make([]string, classes)
		for c := range row {
			row[c] = "0.0"
		}
		row[p] = "1.0"
		pb.WriteString(strings.Join(row, " ") + "\n")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(ref, group), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(res, group), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ref, group, name+".labels"), []byte(lb.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(res, group, name+".predictions"), []byte(pb.String()), 0o644))
}

type runDirs struct {
	ref, res, out string
}

func newRunDirs(t *testing.T) runDirs {
	root := t.TempDir()
	d := runDirs{
		ref: filepath.Join(root, "ref"),
		res: filepath.Join(root, "res"),
		out: filepath.Join(root, "out"),
	}
	require.NoError(t, os.MkdirAll(d.ref, 0o755))
	require.NoError(t, os.MkdirAll(d.res, 0o755))
	return d
}

// standardRun writes two datasets of three episodes plus one malformed
// episode whose prediction count does not match its labels.
func standardRun(t *testing.T) runDirs {
	d := newRunDirs(t)
	episodeFixture(t, d.ref, d.res, "omniglot", "task_1", []int{0, 1, 2, 0}, []int{0, 1, 2, 0}, 3)
	episodeFixture(t, d.ref, d.res, "omniglot", "task_2", []int{0, 1, 2, 0}, []int{0, 1, 1, 0}, 3)
	episodeFixture(t, d.ref, d.res, "omniglot", "task_10", []int{0, 0, 1, 1}, []int{1, 1, 0, 0}, 2)
	episodeFixture(t, d.ref, d.res, "flowers", "task_1", []int{0, 1, 0, 1}, []int{0, 1, 1, 1}, 2)
	episodeFixture(t, d.ref, d.res, "flowers", "task_2", []int{0, 1, 2, 3}, []int{0, 1, 2, 2}, 4)
	episodeFixture(t, d.ref, d.res, "flowers", "task_3", []int{2, 2, 1, 0}, []int{2, 2, 1, 0}, 3)
	episodeFixture(t, d.ref, d.res, "flowers", "broken", []int{0, 1, 0}, []int{0, 1}, 2)
	return d
}

func testOptions(d runDirs, metric metrics.Metric) Options {
	sel, err := metrics.NewRegistry(metrics.Scorer{}).Select(metric.Name())
	if err != nil {
		panic(err)
	}
	return Options{
		ReferenceDir:   d.ref,
		PredictionsDir: d.res,
		OutputDir:      d.out,
		Selection:      sel,
		Workers:        4,
		Confidence:     0.95,
		Interval:       statistics.MethodT,
		Title:          "Detailed Results",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_Run(t *testing.T) {
	d := standardRun(t)
	opts := testOptions(d, metrics.MetricMacroF1Score)
	opts.Histograms = true
	opts.Heatmaps = true
	opts.JUnit = true

	summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.KeyMacroF1Score, summary.OfficialScore)
	assert.Equal(t, "macro_f1_score", summary.Metric)
	assert.Equal(t, 7, summary.Episodes)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "broken", summary.Failed[0].Episode)
	assert.Equal(t, "flowers", summary.Failed[0].Group)
	assert.Contains(t, summary.Failed[0].Error, "inconsistent numbers of samples")

	// Natural order within each group, groups sorted by name.
	var order []string
	for _, r := range summary.Results {
		order = append(order, r.Group+"/"+r.Episode)
	}
	assert.Equal(t, []string{
		"flowers/broken", "flowers/task_1", "flowers/task_2", "flowers/task_3",
		"omniglot/task_1", "omniglot/task_2", "omniglot/task_10",
	}, order)

	acc := summary.Overall[models.KeyAccuracy]
	require.True(t, acc.Defined())
	assert.Equal(t, 6, acc.N)
	// (3/4 + 3/4 + 1 + 1 + 3/4 + 0) / 6
	assert.InDelta(t, 4.25/6, *acc.Mean, 1e-12)

	require.Len(t, summary.Groups, 2)
	assert.Equal(t, "flowers", summary.Groups[0].Name)
	assert.Equal(t, 3, summary.Groups[0].Episodes)

	require.Len(t, summary.Artifacts, 8)
	for _, a := range summary.Artifacts {
		assert.FileExists(t, a.Path)
		raw, err := base64.StdEncoding.DecodeString(a.Data)
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(raw))
		require.NoError(t, err, a.Path)
	}
	assert.FileExists(t, filepath.Join(d.out, "accuracy_histogram.png"))
	assert.FileExists(t, filepath.Join(d.out, "macro_recall_heatmap.png"))

	scores, err := os.ReadFile(filepath.Join(d.out, reporting.ScoresFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(scores)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Macro F1 Score: "))
	assert.Equal(t, fmt.Sprintf("Accuracy: %v", *acc.Mean), lines[1])

	for _, name := range []string{reporting.SummaryFile, reporting.HTMLFile, reporting.JUnitFile} {
		assert.FileExists(t, filepath.Join(d.out, name))
	}
}

func TestPipeline_ResultsDoNotDependOnWorkers(t *testing.T) {
	d := standardRun(t)

	var summaries []*models.RunSummary
	for _, workers := range []int{1, 3, 16} {
		opts := testOptions(d, metrics.MetricAccuracy)
		opts.Workers = workers
		opts.OutputDir = filepath.Join(d.out, fmt.Sprint(workers))
		s, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
		require.NoError(t, err)
		summaries = append(summaries, s)
	}
	for _, s := range summaries[1:] {
		assert.Equal(t, summaries[0].Overall, s.Overall)
		assert.Equal(t, summaries[0].Groups, s.Groups)
		assert.Equal(t, summaries[0].Results, s.Results)
	}
}

func TestPipeline_OutputDirIsRecreated(t *testing.T) {
	d := standardRun(t)
	require.NoError(t, os.MkdirAll(d.out, 0o755))
	stale := filepath.Join(d.out, "stale.png")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := NewPipeline(testOptions(d, metrics.MetricAccuracy), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(d.out, reporting.ScoresFile))
	assert.NoFileExists(t, filepath.Join(d.out, reporting.JUnitFile))
}

func TestPipeline_Filters(t *testing.T) {
	d := standardRun(t)
	opts := testOptions(d, metrics.MetricAccuracy)
	opts.Filters = []string{"omniglot"}

	summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Episodes)
	assert.Empty(t, summary.Failed)

	opts.Filters = []string{"nothing_matches"}
	_, err = NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	assert.ErrorIs(t, err, models.ErrResource)
}

func TestPipeline_SingleEpisode(t *testing.T) {
	d := newRunDirs(t)
	episodeFixture(t, d.ref, d.res, "", "only", []int{0, 1}, []int{0, 1}, 2)
	opts := testOptions(d, metrics.MetricAccuracy)
	opts.Histograms = true
	opts.Heatmaps = true

	summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	acc := summary.Official()
	require.True(t, acc.Defined())
	assert.Equal(t, 1.0, *acc.Mean)
	assert.Equal(t, 0.0, *acc.HalfWidth)
	require.Len(t, summary.Groups, 1)
	assert.Equal(t, models.OverallGroup, summary.Groups[0].Name)
	assert.Len(t, summary.Artifacts, 8)
}

func TestPipeline_AllEpisodesFail(t *testing.T) {
	d := newRunDirs(t)
	episodeFixture(t, d.ref, d.res, "ds", "bad", []int{0, 1, 2}, []int{0}, 2)
	opts := testOptions(d, metrics.MetricAccuracy)
	opts.Histograms = true

	summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrComputation)
	require.NotNil(t, summary)
	assert.False(t, summary.Official().Defined())
	assert.Empty(t, summary.Artifacts)
	assert.FileExists(t, filepath.Join(d.out, reporting.SummaryFile))
}

func TestPipeline_MissingPredictions(t *testing.T) {
	d := standardRun(t)
	require.NoError(t, os.Remove(filepath.Join(d.res, "flowers", "task_2.predictions")))

	summary, err := NewPipeline(testOptions(d, metrics.MetricAccuracy), WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Failed, 2)
	assert.Equal(t, "task_2", summary.Failed[1].Episode)
}

func TestPipeline_InputErrors(t *testing.T) {
	d := newRunDirs(t)

	opts := testOptions(d, metrics.MetricAccuracy)
	opts.ReferenceDir = filepath.Join(d.ref, "missing")
	_, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	assert.ErrorIs(t, err, models.ErrResource)

	// Present but empty.
	_, err = NewPipeline(testOptions(d, metrics.MetricAccuracy), WithLogger(quietLogger())).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoEpisodes)
}

func TestPipeline_Cancelled(t *testing.T) {
	d := standardRun(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(testOptions(d, metrics.MetricAccuracy), WithLogger(quietLogger())).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Progress(t *testing.T) {
	d := standardRun(t)
	p := NewPipeline(testOptions(d, metrics.MetricAccuracy), WithLogger(quietLogger()))

	var mu sync.Mutex
	counts := map[EventType]int{}
	failed := 0
	p.OnProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.EventType]++
		if e.EventType == EventEpisodeComplete && e.Err != nil {
			failed++
		}
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[EventRunStart])
	assert.Equal(t, 7, counts[EventEpisodeComplete])
	assert.Equal(t, 1, counts[EventRunComplete])
	assert.Equal(t, 0, counts[EventFigureComplete])
	assert.Equal(t, 1, failed)
}

func TestPipeline_Bootstrap(t *testing.T) {
	d := standardRun(t)
	opts := testOptions(d, metrics.MetricAccuracy)
	opts.Interval = statistics.MethodBootstrap
	opts.BootstrapSeed = 7

	a, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)
	b, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "bootstrap", a.Interval)
	assert.Equal(t, *a.Official().HalfWidth, *b.Official().HalfWidth)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := projectconfig.New()
	cfg.Dir = "/work"
	cfg.Scoring.Classes = "union"
	cfg.Report.Interval = "bootstrap"
	off := false
	cfg.Report.Heatmaps = &off

	reg, err := cfg.Registry()
	require.NoError(t, err)
	sel, err := reg.Select("accuracy")
	require.NoError(t, err)

	opts, err := OptionsFromConfig(cfg, sel)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", projectconfig.DefaultReferenceDir), opts.ReferenceDir)
	assert.Equal(t, metrics.ClassesUnion, opts.Selection.Scorer.Classes)
	assert.Equal(t, statistics.MethodBootstrap, opts.Interval)
	assert.Equal(t, projectconfig.DefaultBootstrapSeed, opts.BootstrapSeed)
	assert.True(t, opts.Histograms)
	assert.False(t, opts.Heatmaps)
	assert.Equal(t, projectconfig.DefaultWorkers, opts.Workers)

	cfg.Report.Confidence = 1
	_, err = OptionsFromConfig(cfg, sel)
	assert.ErrorContains(t, err, "confidence")

	cfg.Report.Confidence = 0.9
	cfg.Scoring.Workers = 0
	_, err = OptionsFromConfig(cfg, sel)
	assert.ErrorContains(t, err, "workers")
}

func TestOptionsFromConfig_OutputMustNotContainInputs(t *testing.T) {
	sel, err := metrics.NewRegistry(metrics.Scorer{}).Select("accuracy")
	require.NoError(t, err)

	for _, output := range []string{".", "..", "/", "reference_data", "/work/predictions"} {
		t.Run(output, func(t *testing.T) {
			cfg := projectconfig.New()
			cfg.Dir = "/work"
			cfg.Paths.Output = output

			_, err := OptionsFromConfig(cfg, sel)
			require.Error(t, err)
			assert.ErrorIs(t, err, workspace.ErrOutputOverlap)
		})
	}

	cfg := projectconfig.New()
	cfg.Dir = "/work"
	cfg.Paths.Output = "results/run1"
	_, err = OptionsFromConfig(cfg, sel)
	require.NoError(t, err)
}

func TestPipeline_OutputContainingInputsIsRejected(t *testing.T) {
	d := standardRun(t)
	root := filepath.Dir(d.ref)

	for _, output := range []string{root, d.ref, d.res} {
		opts := testOptions(d, metrics.MetricAccuracy)
		opts.OutputDir = output
		summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, workspace.ErrOutputOverlap)
		assert.Nil(t, summary)
	}

	// Inputs are untouched.
	assert.FileExists(t, filepath.Join(d.ref, "omniglot", "task_1.labels"))
	assert.FileExists(t, filepath.Join(d.res, "omniglot", "task_1.predictions"))
}

func TestPipeline_ClassSetOfSelection(t *testing.T) {
	d := newRunDirs(t)
	// True classes {0, 1}; class 2 is only ever predicted.
	episodeFixture(t, d.ref, d.res, "", "task_1", []int{0, 1}, []int{0, 2}, 3)

	run := func(classes metrics.ClassSet) float64 {
		sel, err := metrics.NewRegistry(metrics.Scorer{Classes: classes}).Select("macro_precision")
		require.NoError(t, err)
		opts := testOptions(d, metrics.MetricMacroPrecision)
		opts.Selection = sel

		summary, err := NewPipeline(opts, WithLogger(quietLogger())).Run(context.Background())
		require.NoError(t, err)
		st := summary.Official()
		require.True(t, st.Defined())

		// The reported score agrees with the selection's own score function.
		ep := models.Episode{Labels: models.LabelArray{0, 1}, Predictions: models.PredictionMatrix{{1, 0, 0}, {0, 0, 1}}}
		direct, err := sel.Score(ep.Labels, ep.Predictions)
		require.NoError(t, err)
		assert.InDelta(t, direct, *st.Mean, 1e-12)
		return *st.Mean
	}

	assert.InDelta(t, 0.5, run(metrics.ClassesTrue), 1e-12)
	assert.InDelta(t, 1.0/3.0, run(metrics.ClassesUnion), 1e-12)
}
