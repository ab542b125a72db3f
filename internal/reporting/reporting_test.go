package reporting

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stat(n int, mean, half float64) models.AggregateStatistic {
	return models.AggregateStatistic{N: n, Mean: &mean, HalfWidth: &half, Confidence: 0.95}
}

func sampleSummary() *models.RunSummary {
	return &models.RunSummary{
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationMs:    1500,
		OfficialScore: models.KeyMacroF1Score,
		Metric:        "macro_f1_score",
		Interval:      "t",
		Episodes:      3,
		Results: []models.EpisodeResult{
			{Episode: "task_1", Group: "omniglot", Scores: models.ScoreResult{models.KeyAccuracy: 0.9, models.KeyMacroF1Score: 0.85}},
			{Episode: "task_2", Group: "omniglot", Scores: models.ScoreResult{models.KeyAccuracy: 0.8, models.KeyMacroF1Score: 0.75}},
			{Episode: "task_1", Group: "flowers", Error: "accuracy: score cannot be computed: row 0: prediction row has no classes"},
		},
		Failed: []models.EpisodeFailure{
			{Episode: "task_1", Group: "flowers", Error: "accuracy: score cannot be computed: row 0: prediction row has no classes"},
		},
		Overall: map[string]models.AggregateStatistic{
			models.KeyAccuracy:       stat(2, 0.85, 0.635),
			models.KeyMacroF1Score:   stat(2, 0.8, 0.635),
			models.KeyMacroPrecision: {Confidence: 0.95},
		},
		Groups: []models.GroupSummary{
			{Name: "omniglot", Episodes: 2, Stats: map[string]models.AggregateStatistic{
				models.KeyAccuracy:     stat(2, 0.85, 0.635),
				models.KeyMacroF1Score: stat(2, 0.8, 0.635),
			}},
		},
		Artifacts: []models.VisualizationArtifact{
			{Kind: models.ArtifactHistogram, Metric: models.KeyMacroF1Score, Title: "Frequency Histogram", Path: "hist.png", Data: "iVBORw0KGgo="},
		},
	}
}

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"excellent high", 0.95, "Excellent (>90%)"},
		{"excellent boundary", 0.91, "Excellent (>90%)"},
		{"good high", 0.90, "Good (70-90%)"},
		{"good low", 0.70, "Good (70-90%)"},
		{"needs work high", 0.69, "Needs Work (50-70%)"},
		{"needs work low", 0.50, "Needs Work (50-70%)"},
		{"poor high", 0.49, "Poor (<50%)"},
		{"poor zero", 0.0, "Poor (<50%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretScore(tt.score))
		})
	}
}

func TestFormatStatistic(t *testing.T) {
	assert.Equal(t, "0.8000 ± 0.0125", FormatStatistic(stat(10, 0.8, 0.0125)))
	assert.Equal(t, "n/a", FormatStatistic(models.AggregateStatistic{}))
	assert.Equal(t, "95%", FormatConfidence(0.95))
	assert.Equal(t, "99.5%", FormatConfidence(0.995))
}

func TestMetricOrder(t *testing.T) {
	s := sampleSummary()
	assert.Equal(t, []string{models.KeyMacroF1Score, models.KeyAccuracy, models.KeyMacroPrecision}, MetricOrder(s))

	s.OfficialScore = models.KeyAccuracy
	assert.Equal(t, []string{models.KeyAccuracy, models.KeyMacroF1Score, models.KeyMacroPrecision}, MetricOrder(s))
}

func TestFormatScores(t *testing.T) {
	got := string(FormatScores(sampleSummary()))
	// Undefined statistics are left out.
	assert.Equal(t, "Macro F1 Score: 0.8\nAccuracy: 0.85\n", got)
}

func TestWriteScoresAndSummary(t *testing.T) {
	dir := t.TempDir()
	s := sampleSummary()

	require.NoError(t, WriteScores(s, filepath.Join(dir, ScoresFile)))
	data, err := os.ReadFile(filepath.Join(dir, ScoresFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Macro F1 Score: "))

	require.NoError(t, WriteSummaryJSON(s, filepath.Join(dir, SummaryFile)))
	data, err = os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	var decoded models.RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded.Episodes)
	assert.Equal(t, "hist.png", decoded.Artifacts[0].Path)
	assert.Empty(t, decoded.Artifacts[0].Data)
	assert.False(t, decoded.Overall[models.KeyMacroPrecision].Defined())

	err = WriteScores(s, filepath.Join(dir, "missing", ScoresFile))
	assert.ErrorIs(t, err, models.ErrResource)
}

func TestFormatSummaryReport(t *testing.T) {
	s := sampleSummary()
	s.Groups = append(s.Groups, models.GroupSummary{Name: "flowers", Stats: map[string]models.AggregateStatistic{}})

	out := FormatSummaryReport(s)
	assert.Contains(t, out, "Official Score: Macro F1 Score = 0.8000 ± 0.6350 (95% CI)")
	assert.Contains(t, out, "Good (70-90%)")
	assert.Contains(t, out, "2 scored, 1 failed")
	assert.Contains(t, out, "Duration:       1.5s")
	assert.Contains(t, out, "✓ omniglot: 0.8000 ± 0.6350")
	assert.Contains(t, out, "✗ flowers: n/a")
	assert.Contains(t, out, "✗ flowers/task_1: accuracy: score cannot be computed")
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML(sampleSummary(), "Results <phase 1>")
	require.NoError(t, err)
	html := string(page)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Results &lt;phase 1&gt;</title>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>omniglot</td>")
	assert.Contains(t, html, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.Contains(t, html, "Failed episodes")
	assert.NotContains(t, html, "<phase 1>")
}

func TestBuildMarkdown_PartiallyScoredEpisodeCounts(t *testing.T) {
	s := sampleSummary()
	// task_2 failed one metric but its other scores are aggregated.
	s.Results[1].Error = "macro_recall: score cannot be computed"
	s.Failed = append(s.Failed, models.EpisodeFailure{Episode: "task_2", Group: "omniglot", Error: s.Results[1].Error})

	md := BuildMarkdown(s, "Run")
	assert.Contains(t, md, "Episodes scored: 2 of 3.")
	assert.Contains(t, FormatSummaryReport(s), "2 scored, 2 failed")
}

func TestBuildMarkdown_NoGroupsNoFigures(t *testing.T) {
	s := sampleSummary()
	s.Groups = nil
	s.Artifacts = nil
	s.Failed = nil

	md := BuildMarkdown(s, "Run")
	assert.Contains(t, md, "## Overall")
	assert.NotContains(t, md, "## Per dataset")
	assert.NotContains(t, md, "## Figures")
	assert.NotContains(t, md, "## Failed episodes")
	assert.Contains(t, md, "| Macro Precision | n/a | n/a | 0 | |")
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), HTMLFile)
	require.NoError(t, WriteHTML(sampleSummary(), "Detailed Results", path))
	assert.FileExists(t, path)
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(sampleSummary())

	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Errors)
	assert.InDelta(t, 1.5, suites.Time, 1e-9)
	require.Len(t, suites.TestSuites, 2)

	omni := suites.TestSuites[0]
	assert.Equal(t, "omniglot", omni.Name)
	assert.Equal(t, 2, omni.Tests)
	assert.Equal(t, 0, omni.Errors)
	require.Len(t, omni.Properties, 5)
	assert.Equal(t, "0.8000", omni.Properties[1].Value)
	assert.Equal(t, JUnitProperty{Name: "lower", Value: "0.1650"}, omni.Properties[3])
	assert.Equal(t, JUnitProperty{Name: "upper", Value: "1.4350"}, omni.Properties[4])
	assert.Equal(t, []JUnitProperty{
		{Name: models.KeyAccuracy, Value: "0.900000"},
		{Name: models.KeyMacroF1Score, Value: "0.850000"},
	}, omni.TestCases[0].Properties)

	flowers := suites.TestSuites[1]
	assert.Equal(t, 1, flowers.Errors)
	require.NotNil(t, flowers.TestCases[0].Error)
	assert.Nil(t, flowers.Properties)
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), JUnitFile)
	require.NoError(t, WriteJUnitXML(sampleSummary(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &parsed))
	assert.Equal(t, 3, parsed.Tests)
}
