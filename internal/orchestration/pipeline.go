// Package orchestration runs a complete scoring pass: it discovers episodes,
// scores them in parallel, aggregates the scores, renders figures and writes
// the report files.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cdmetadl/cdscore/internal/dataset"
	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/cdmetadl/cdscore/internal/reporting"
	"github.com/cdmetadl/cdscore/internal/statistics"
	"github.com/cdmetadl/cdscore/internal/visualize"
	"github.com/cdmetadl/cdscore/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// Figure titles.
const (
	HistogramTitle = "Frequency Histogram"
	HeatmapTitle   = "Frequency Heatmap"
)

var (
	errNoEpisodes = errors.New("no episodes found")
	errNoScores   = errors.New("no episode could be scored")
)

// Options configures a Pipeline.
type Options struct {
	ReferenceDir   string
	PredictionsDir string
	OutputDir      string

	// Selection is the official metric. Its Scorer computes every metric.
	Selection metrics.Selection
	Workers   int

	Confidence    float64
	Interval      statistics.Method
	BootstrapSeed int64

	Histograms bool
	Heatmaps   bool
	Title      string
	// JUnit also writes junit.xml.
	JUnit bool
	// Filters restricts the run to episodes matching any glob pattern.
	Filters []string
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart        EventType = "run_start"
	EventEpisodeComplete EventType = "episode_complete"
	EventFigureComplete  EventType = "figure_complete"
	EventRunComplete     EventType = "run_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType EventType
	Name      string
	Num       int
	Total     int
	Err       error
}

// Pipeline scores one run. Create it with NewPipeline.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used for the summary timestamp.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline for opts.
func NewPipeline(opts Options, popts ...PipelineOption) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Confidence == 0 {
		opts.Confidence = statistics.DefaultConfidence
	}
	if opts.Interval == "" {
		opts.Interval = statistics.MethodT
	}
	p := &Pipeline{opts: opts, logger: slog.Default(), now: time.Now}
	for _, o := range popts {
		o(p)
	}
	return p
}

// OnProgress registers a progress listener. Listeners may be called from
// several goroutines at once.
func (p *Pipeline) OnProgress(listener ProgressListener) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.listeners = append(p.listeners, listener)
}

func (p *Pipeline) notifyProgress(event ProgressEvent) {
	p.progressMu.Lock()
	listeners := make([]ProgressListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// episodeOutcome is the scoring result of one source.
type episodeOutcome struct {
	source dataset.Source
	scores models.ScoreResult
	err    error
}

// Run executes the pipeline. The returned summary is non-nil whenever the
// report files were written, even if the error reports that no episode could
// be scored.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	start := p.now()

	if err := workspace.ExistDir(p.opts.ReferenceDir); err != nil {
		return nil, err
	}
	if err := workspace.ExistDir(p.opts.PredictionsDir); err != nil {
		return nil, err
	}
	if err := workspace.CheckOutputDir(p.opts.OutputDir, p.opts.ReferenceDir, p.opts.PredictionsDir); err != nil {
		return nil, err
	}
	p.logTree(ctx, "reference", p.opts.ReferenceDir)
	p.logTree(ctx, "predictions", p.opts.PredictionsDir)

	sources, err := dataset.Discover(p.opts.ReferenceDir, p.opts.PredictionsDir)
	if err != nil {
		return nil, err
	}
	if sources, err = FilterSources(sources, p.opts.Filters); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, &models.ResourceError{Op: "discover episodes", Path: p.opts.ReferenceDir, Err: errNoEpisodes}
	}
	p.logger.Info("Scoring episodes", "episodes", len(sources), "datasets", len(dataset.Groups(sources)),
		"workers", p.opts.Workers, "metric", p.opts.Selection.Label)
	p.notifyProgress(ProgressEvent{EventType: EventRunStart, Total: len(sources)})

	outcomes, err := p.scoreEpisodes(ctx, sources)
	if err != nil {
		return nil, err
	}

	book := models.NewScoreBook()
	summary := &models.RunSummary{
		Timestamp:     start,
		OfficialScore: p.opts.Selection.Label,
		Metric:        p.opts.Selection.Metric.Name(),
		Interval:      string(p.opts.Interval),
		Episodes:      len(outcomes),
	}
	for _, o := range outcomes {
		result := models.EpisodeResult{Episode: o.source.Name, Group: o.source.Group, Scores: o.scores}
		if o.err != nil {
			result.Error = o.err.Error()
			summary.Failed = append(summary.Failed, models.EpisodeFailure{
				Episode: o.source.Name,
				Group:   o.source.Group,
				Error:   o.err.Error(),
			})
		}
		summary.Results = append(summary.Results, result)
		if len(o.scores) > 0 {
			book.Add(o.source.Group, o.scores)
		}
	}

	if err := p.aggregate(book, summary); err != nil {
		return nil, err
	}

	if err := workspace.RecreateDir(p.opts.OutputDir); err != nil {
		return nil, err
	}
	artifacts, err := p.render(ctx, book)
	if err != nil {
		return nil, err
	}
	summary.Artifacts = artifacts
	summary.DurationMs = p.now().Sub(start).Milliseconds()

	if err := p.writeReports(summary); err != nil {
		return nil, err
	}
	p.notifyProgress(ProgressEvent{EventType: EventRunComplete, Total: len(outcomes)})

	if book.Total() == 0 {
		return summary, models.NewComputationError("score", errNoScores)
	}
	p.logger.Info("Scoring complete", "episodes", summary.Episodes, "failed", len(summary.Failed), "output", p.opts.OutputDir)
	return summary, nil
}

// scoreEpisodes loads and scores every source with at most Workers running
// at once. Outcomes are returned in source order. Only cancellation of ctx
// is an error; per-episode failures are carried in the outcomes.
func (p *Pipeline) scoreEpisodes(ctx context.Context, sources []dataset.Source) ([]episodeOutcome, error) {
	outcomes := make([]episodeOutcome, len(sources))

	var done int
	var doneMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := p.scoreEpisode(src)
			outcomes[i] = outcome

			doneMu.Lock()
			done++
			num := done
			doneMu.Unlock()
			p.notifyProgress(ProgressEvent{
				EventType: EventEpisodeComplete,
				Name:      src.String(),
				Num:       num,
				Total:     len(sources),
				Err:       outcome.err,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring episodes: %w", err)
	}
	return outcomes, nil
}

func (p *Pipeline) scoreEpisode(src dataset.Source) episodeOutcome {
	ep, err := src.Load()
	if err != nil {
		p.logger.Warn("Skipping episode", "episode", src.String(), "error", err)
		return episodeOutcome{source: src, err: err}
	}
	scores, err := p.opts.Selection.Scorer.ComputeAll(ep.Labels, ep.Predictions)
	if err != nil {
		p.logger.Warn("Episode not fully scored", "episode", src.String(), "error", err)
	}
	p.logger.Debug("Scored episode", "episode", src.String(), "examples", len(ep.Labels), "scores", scores)
	return episodeOutcome{source: src, scores: scores, err: err}
}

// aggregate fills the overall and per-group statistics of summary.
func (p *Pipeline) aggregate(book *models.ScoreBook, summary *models.RunSummary) error {
	summary.Overall = make(map[string]models.AggregateStatistic, len(metrics.All))
	for _, m := range metrics.All {
		st, err := p.aggregateOne(book.All(m.Label()))
		if err != nil {
			return fmt.Errorf("aggregating %s: %w", m.Label(), err)
		}
		summary.Overall[m.Label()] = st
	}

	for _, g := range book.Groups() {
		gs := models.GroupSummary{
			Name:     g,
			Episodes: book.Episodes(g),
			Stats:    make(map[string]models.AggregateStatistic, len(metrics.All)),
		}
		for _, m := range metrics.All {
			st, err := p.aggregateOne(book.Collection(g, m.Label()))
			if err != nil {
				return fmt.Errorf("aggregating %s for %s: %w", m.Label(), g, err)
			}
			gs.Stats[m.Label()] = st
		}
		summary.Groups = append(summary.Groups, gs)
	}
	return nil
}

func (p *Pipeline) aggregateOne(scores models.ScoreCollection) (models.AggregateStatistic, error) {
	return statistics.Aggregate(p.opts.Interval, scores, p.opts.Confidence, p.opts.BootstrapSeed)
}

// figure is one image to render.
type figure struct {
	metric metrics.Metric
	kind   models.ArtifactKind
	path   string
}

// render draws the configured figures for every metric with at least one
// score. Each figure has its own file, so they are drawn concurrently.
func (p *Pipeline) render(ctx context.Context, book *models.ScoreBook) ([]models.VisualizationArtifact, error) {
	var figures []figure
	for _, m := range metrics.All {
		if len(book.All(m.Label())) == 0 {
			p.logger.Warn("No scores to plot", "metric", m.Label())
			continue
		}
		if p.opts.Histograms {
			figures = append(figures, figure{m, models.ArtifactHistogram, p.figurePath(m, models.ArtifactHistogram)})
		}
		if p.opts.Heatmaps {
			figures = append(figures, figure{m, models.ArtifactHeatmap, p.figurePath(m, models.ArtifactHeatmap)})
		}
	}

	artifacts := make([]models.VisualizationArtifact, len(figures))
	groups := book.Groups()

	var done int
	var doneMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, f := range figures {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var art *models.VisualizationArtifact
			var err error
			switch f.kind {
			case models.ArtifactHistogram:
				art, err = visualize.Histogram(book.All(f.metric.Label()), f.metric.Label(), HistogramTitle, f.path)
			case models.ArtifactHeatmap:
				art, err = visualize.Heatmap(toFloatMap(book.ByGroup(f.metric.Label())), groups, groups, f.metric.Label(), HeatmapTitle, f.path)
			}
			if err != nil {
				return fmt.Errorf("rendering %s %s: %w", f.metric.Label(), f.kind, err)
			}
			artifacts[i] = *art
			p.logger.Debug("Rendered figure", "path", art.Path)

			doneMu.Lock()
			done++
			num := done
			doneMu.Unlock()
			p.notifyProgress(ProgressEvent{EventType: EventFigureComplete, Name: art.Path, Num: num, Total: len(figures)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (p *Pipeline) figurePath(m metrics.Metric, kind models.ArtifactKind) string {
	return filepath.Join(p.opts.OutputDir, fmt.Sprintf("%s_%s.png", m.Name(), kind))
}

func (p *Pipeline) writeReports(summary *models.RunSummary) error {
	out := p.opts.OutputDir
	if err := reporting.WriteScores(summary, filepath.Join(out, reporting.ScoresFile)); err != nil {
		return err
	}
	if err := reporting.WriteSummaryJSON(summary, filepath.Join(out, reporting.SummaryFile)); err != nil {
		return err
	}
	if err := reporting.WriteHTML(summary, p.opts.Title, filepath.Join(out, reporting.HTMLFile)); err != nil {
		return err
	}
	if p.opts.JUnit {
		if err := reporting.WriteJUnitXML(summary, filepath.Join(out, reporting.JUnitFile)); err != nil {
			return err
		}
	}
	return nil
}

// logTree lists an input directory at debug level.
func (p *Pipeline) logTree(ctx context.Context, name, dir string) {
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	entries, err := workspace.ListTree(dir, 4)
	if err != nil {
		p.logger.Debug("Cannot list directory", "dir", dir, "error", err)
		return
	}
	p.logger.Debug("Listing directory", "name", name, "dir", dir, "entries", entries)
}

func toFloatMap(in map[string]models.ScoreCollection) map[string][]float64 {
	out := make(map[string][]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
